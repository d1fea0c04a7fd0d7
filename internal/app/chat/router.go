package chat

import (
	"context"
	"strings"

	"github.com/quillhq/quill-agent/internal/domain"
	"github.com/quillhq/quill-agent/internal/observability"
)

const routerInstruction = `你是一个请求分类器。根据对话上下文，判断用户的最新输入应该由哪个角色处理：
- director：讨论选题、结构、写作计划，或无法归类的请求
- researcher：需要查找资料、事实或数据
- writer：要求直接撰写、续写或改写正文
- editor：要求点评文本、提出修改意见
只输出一个角色名（director / researcher / writer / editor），不要输出其他任何内容。`

// routerHistoryTurns and routerHistoryRunes bound how much context travels
// with the classification call.
const (
	routerHistoryTurns = 3
	routerHistoryRunes = 50
)

// Router decides which agent handles a turn. One flat decision with no
// memory: (history, message) → identity, with an explicit default.
type Router struct {
	gw domain.ModelGateway
}

func NewRouter(gw domain.ModelGateway) *Router {
	return &Router{gw: gw}
}

// Route never fails: any gateway error, empty response, or identity outside
// the routable set resolves to the director.
func (r *Router) Route(ctx context.Context, history []domain.HistoryTurn, latest string) domain.AgentID {
	log := observability.LoggerFromContext(ctx)

	var b strings.Builder
	b.WriteString(routerInstruction)
	b.WriteString("\n\n对话上下文：\n")

	start := len(history) - routerHistoryTurns
	if start < 0 {
		start = 0
	}
	for _, t := range history[start:] {
		b.WriteString(string(t.Author))
		b.WriteString(": ")
		b.WriteString(truncateRunes(t.Text, routerHistoryRunes))
		b.WriteString("\n")
	}

	b.WriteString("\n用户的最新输入：\n")
	b.WriteString(latest)

	reply, err := r.gw.Generate(ctx, b.String(), nil)
	if err != nil {
		log.Warn("router call failed, falling back to director", "error", err)
		return domain.AgentDirector
	}

	id := normalizeIdentity(reply)
	if !domain.IsRoutable(id) {
		log.Warn("router returned unknown identity, falling back to director", "identity", reply)
		return domain.AgentDirector
	}

	return id
}

// normalizeIdentity strips the quoting and casing noise models add around a
// single-token answer.
func normalizeIdentity(raw string) domain.AgentID {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "\"'`“”‘’")
	s = strings.TrimSpace(s)
	return domain.AgentID(s)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
