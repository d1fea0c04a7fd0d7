package agents

import (
	"strings"

	"github.com/quillhq/quill-agent/internal/domain"
)

const analystRole = `你是文风分析专家。通读下面的文本，总结作者的写作风格，输出一个 JSON 对象，
字段全部为中文 Markdown 文本：
- overview：整体风格概述
- methodology：组织文章的方法
- mindset：思维方式与视角
- expression：语言表达特征
- habits：写作习惯
- markers：标志性元素（口头禅、常用结构等）
只输出 JSON，不要输出其他内容。`

// styleAnalysisSchema constrains the analyst's output to the six-field
// profile. Extraction still goes through the tolerant parser, the schema is
// best effort.
var styleAnalysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"overview":    map[string]any{"type": "string"},
		"methodology": map[string]any{"type": "string"},
		"mindset":     map[string]any{"type": "string"},
		"expression":  map[string]any{"type": "string"},
		"habits":      map[string]any{"type": "string"},
		"markers":     map[string]any{"type": "string"},
	},
	"required": []string{"overview", "methodology", "mindset", "expression", "habits", "markers"},
}

// Analyst builds the style-analysis request over the source material.
// Single-shot with a structured-output schema; never a router target.
func Analyst(sourceText string, sourceURLs []string) Request {
	var b strings.Builder
	b.WriteString(analystRole)
	b.WriteString("\n\n## 待分析文本\n")
	b.WriteString(sourceText)
	if len(sourceURLs) > 0 {
		b.WriteString("\n\n## 参考链接\n")
		b.WriteString(strings.Join(sourceURLs, "\n"))
	}

	return Request{
		Prompt: b.String(),
		Config: &domain.GenerateConfig{ResponseSchema: styleAnalysisSchema},
	}
}

const topicRole = `用一个不超过10个字的短语概括下面这段话的写作主题。只输出短语本身。`

// Topic builds the best-effort topic-extraction request fired on the first
// substantive user message.
func Topic(userText string) Request {
	return Request{Prompt: topicRole + "\n\n" + userText}
}
