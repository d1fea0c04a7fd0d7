// Package agents is the prompt library for Quill's five writing agents.
// Every builder is a pure function from its semantic inputs to a gateway
// request; no builder touches conversation state.
package agents

import (
	"strings"

	"github.com/quillhq/quill-agent/internal/domain"
)

// SuggestionMarker separates an agent's display text from its trailing
// JSON array of follow-up suggestions. This exact literal is the only
// structured format crossing the agent-output boundary.
const SuggestionMarker = ":::SUGGESTIONS:::"

// Request is a fully constructed model gateway call.
type Request struct {
	Prompt string
	Config *domain.GenerateConfig
}

// suggestionInstruction asks the model to append the suggestion payload.
// This is a natural-language convention, not a schema; callers must
// tolerate its absence.
const suggestionInstruction = `
输出要求：在回复的最后另起一行，严格按照以下格式附加 2-4 条用户可能的后续输入建议：
` + SuggestionMarker + `["建议一", "建议二", "建议三"]
这一行必须是回复的最后一行，冒号标记必须原样保留，方括号内必须是合法的 JSON 字符串数组。`

// personaSection renders the style profile block shared by every agent
// prompt. Returns "" when no persona is selected.
func personaSection(p *domain.Persona) string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("## 写作风格画像：")
	b.WriteString(p.Name)
	b.WriteString("\n\n")

	writeField := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		b.WriteString("### ")
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	writeField("整体风格", p.Analysis.Overview)
	writeField("写作方法", p.Analysis.Methodology)
	writeField("思维方式", p.Analysis.Mindset)
	writeField("表达特征", p.Analysis.Expression)
	writeField("写作习惯", p.Analysis.Habits)
	writeField("标志性元素", p.Analysis.Markers)

	return b.String()
}

// draftSection renders the current draft block, or "" when there is none.
func draftSection(draft string) string {
	if strings.TrimSpace(draft) == "" {
		return ""
	}
	return "## 当前草稿\n" + draft + "\n\n"
}
