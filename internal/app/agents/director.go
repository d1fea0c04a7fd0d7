package agents

import (
	"github.com/quillhq/quill-agent/internal/domain"
)

const directorRole = `你是写作工作室的主笔。你统筹整个写作项目：和用户讨论选题、确定结构、推进草稿。
回答克制、具体，一次只推进一件事。始终使用用户的语言回复。`

// Director builds the lead-writer request. The conversation history travels
// as structured turns; persona and draft are threaded into the prompt.
// Consumed as a stream.
func Director(history []domain.HistoryTurn, userText string, persona *domain.Persona, draft string) Request {
	prompt := directorRole + "\n\n" +
		personaSection(persona) +
		draftSection(draft) +
		"## 用户的新消息\n" + userText + "\n" +
		suggestionInstruction

	return Request{
		Prompt: prompt,
		Config: &domain.GenerateConfig{History: history},
	}
}
