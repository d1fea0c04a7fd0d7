package agents

import (
	"github.com/quillhq/quill-agent/internal/domain"
)

// editorRole keeps critique tied to the persona: the editor judges whether
// the text reads like the profiled author, not against a generic rubric.
const editorRole = `你是写作工作室的编辑。对给定的文本做直接、可执行的点评：
- 按问题严重程度排列，先结构后语句。
- 每条意见给出具体的修改方向，不要空泛表扬。
- 以写作风格画像为标准，指出偏离画像的地方。`

// Editor builds the critique request for content (draft or pasted prose).
// Consumed as a stream.
func Editor(content string, persona *domain.Persona) Request {
	prompt := editorRole + "\n\n" +
		personaSection(persona) +
		"## 待点评文本\n" + content + "\n" +
		suggestionInstruction

	return Request{Prompt: prompt}
}

const applyFixesRole = `你是写作工作室的编辑。下面是当前草稿和你此前提出的修改意见。
请输出按这些意见修改后的完整草稿。只输出修改后的正文，不要解释、不要附加任何标记。`

// ApplyFixes builds the one-shot revision request for the special
// apply-editor-fixes flow. The result replaces the draft wholesale.
func ApplyFixes(draft, critique string, persona *domain.Persona) Request {
	prompt := applyFixesRole + "\n\n" +
		personaSection(persona) +
		"## 当前草稿\n" + draft + "\n\n" +
		"## 修改意见\n" + critique + "\n"

	return Request{Prompt: prompt}
}
