package agents

import (
	"github.com/quillhq/quill-agent/internal/domain"
)

const researcherRole = `你是写作工作室的研究员。针对用户的问题检索并整理可靠信息：
- 给出要点式的研究摘要，注明信息来源。
- 只收集和写作项目相关的内容，和当前草稿呼应。`

// Researcher builds the research request with the external search tool
// enabled. Single-shot; the result is appended to the project's research
// notes by the caller.
func Researcher(userText, draft string) Request {
	prompt := researcherRole + "\n\n" +
		draftSection(draft) +
		"## 研究问题\n" + userText + "\n" +
		suggestionInstruction

	return Request{
		Prompt: prompt,
		Config: &domain.GenerateConfig{EnableSearch: true},
	}
}
