package agents

import (
	"github.com/quillhq/quill-agent/internal/domain"
)

const writerRole = `你是写作工作室的执行写手。根据指示直接产出正文，不解释、不寒暄。
严格贴合给定的写作风格画像；如有研究资料，优先使用资料中的事实。`

// Writer builds the execution-writer request. material is the draft plus any
// accumulated research notes. Consumed as a stream.
func Writer(userText, material string, persona *domain.Persona) Request {
	prompt := writerRole + "\n\n" +
		personaSection(persona)

	if material != "" {
		prompt += "## 写作素材\n" + material + "\n\n"
	}

	prompt += "## 写作指示\n" + userText + "\n" + suggestionInstruction

	return Request{Prompt: prompt}
}
