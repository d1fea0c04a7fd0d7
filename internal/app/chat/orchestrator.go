// Package chat owns the per-conversation turn loop: routing a user message
// to an agent, streaming the agent's reply into the message log, and
// applying the shared project context side effects each agent carries.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quillhq/quill-agent/internal/app/agents"
	"github.com/quillhq/quill-agent/internal/domain"
	"github.com/quillhq/quill-agent/internal/observability"
)

// ApplyFixesCommand is the exact user input that triggers the apply-fixes
// flow. Any other phrasing routes normally.
const ApplyFixesCommand = "应用修改建议"

const (
	// fallbackCritique stands in when no editor message exists yet.
	fallbackCritique = "请整体润色草稿，使结构更清晰、表达更有力。"

	// applyFixesConfirmation replaces the revised draft in the chat:
	// the draft itself lives in the project context, not the timeline.
	applyFixesConfirmation = "已按照编辑的意见更新草稿，可以在草稿区查看修改结果。"

	// genericErrorReply substitutes for whichever message is still pending
	// when a gateway call fails. Non-diagnostic on purpose.
	genericErrorReply = "抱歉，这一步出了点问题，请稍后再试一次。"

	// nothingToReviewReply answers an editor turn with no content at all.
	nothingToReviewReply = "目前还没有可以点评的内容。先写一段草稿，或者把想让我看的文字直接发给我。"
)

var applyFixesSuggestions = []string{"再请编辑看一遍", "继续写下一段", "看看还有哪些地方可以加强"}

// editorPasteThreshold: user text longer than this is treated as the
// content to critique instead of the draft. Counted in runes, the product's
// users write CJK text.
const editorPasteThreshold = 50

// topicMinRunes is what makes a first user message "substantive" enough to
// fire topic extraction.
const topicMinRunes = 4

// ErrTurnInProgress rejects a HandleTurn call while another turn is still
// streaming. One turn per conversation at a time.
var ErrTurnInProgress = errors.New("a turn is already in progress")

// UpdateFunc receives a copy of the pending message after every applied
// increment and on finalization. May be nil.
type UpdateFunc func(domain.Message)

// Orchestrator owns one conversation: its message log, its project context,
// and the single-flight turn guard. Messages are never shared by reference;
// accessors and callbacks hand out copies.
type Orchestrator struct {
	id      domain.ConversationID
	gw      domain.ModelGateway
	router  *Router
	persona *domain.Persona
	now     func() time.Time

	mu             sync.Mutex
	messages       []domain.Message
	pendingIdx     int // index of the pending message, -1 when none
	project        domain.ProjectContext
	turnInProgress bool

	background sync.WaitGroup // fire-and-forget topic extraction
}

func NewOrchestrator(id domain.ConversationID, gw domain.ModelGateway, persona *domain.Persona) *Orchestrator {
	return &Orchestrator{
		id:         id,
		gw:         gw,
		router:     NewRouter(gw),
		persona:    persona,
		now:        time.Now,
		pendingIdx: -1,
	}
}

func (o *Orchestrator) ID() domain.ConversationID { return o.id }

func (o *Orchestrator) Persona() *domain.Persona { return o.persona }

// Messages returns a copy of the message log.
func (o *Orchestrator) Messages() []domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Project returns a snapshot of the shared project context.
func (o *Orchestrator) Project() domain.ProjectContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.project
}

// SetDraft lets the host application write the working draft directly.
func (o *Orchestrator) SetDraft(content string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.project.DraftContent = content
}

// HandleTurn runs one full turn: append the user message, pick an agent,
// stream its reply into a pending message, apply side effects. Gateway
// failures never escape; they collapse into a fixed error reply. The only
// errors returned are the single-flight rejection; empty input is a no-op.
func (o *Orchestrator) HandleTurn(ctx context.Context, userText string, onUpdate UpdateFunc) error {
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil
	}

	ctx = observability.WithConversationID(ctx, string(o.id))
	log := observability.LoggerFromContext(ctx)

	o.mu.Lock()
	if o.turnInProgress {
		o.mu.Unlock()
		return ErrTurnInProgress
	}
	o.turnInProgress = true

	// History is the conversation before this turn; the new user text
	// travels separately in every prompt, never doubled into history.
	history := o.historyTurnsLocked()

	o.messages = append(o.messages, domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Author:    domain.RoleUser,
		Text:      text,
		CreatedAt: o.now(),
	})

	project := o.project
	needTopic := project.Topic == "" && utf8.RuneCountInString(text) >= topicMinRunes
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.turnInProgress = false
		o.mu.Unlock()
	}()

	if needTopic {
		o.background.Add(1)
		go o.extractTopic(context.WithoutCancel(ctx), text)
	}

	if text == ApplyFixesCommand {
		o.applyFixes(ctx, project, onUpdate)
		log.Info("turn completed", "agent", domain.AgentEditor, "flow", "apply_fixes")
		return nil
	}

	target := o.router.Route(ctx, history, text)
	log.Info("turn routed", "agent", target)

	o.appendPending(target, onUpdate)

	var err error
	switch target {
	case domain.AgentResearcher:
		err = o.runResearcher(ctx, text, project, onUpdate)
	case domain.AgentWriter:
		err = o.runWriter(ctx, text, project, onUpdate)
	case domain.AgentEditor:
		err = o.runEditor(ctx, text, project, onUpdate)
	default:
		err = o.runDirector(ctx, history, text, project, onUpdate)
	}

	if err != nil {
		log.Error("turn failed", "agent", target, "error", err)
		o.failPending(onUpdate)
		return nil
	}

	log.Info("turn completed", "agent", target)
	return nil
}

// WaitBackground blocks until in-flight topic extraction has finished.
// Mainly for orderly shutdown.
func (o *Orchestrator) WaitBackground() {
	o.background.Wait()
}

// ─────────────────────────────────────────────
// Per-agent dispatch
// ─────────────────────────────────────────────

func (o *Orchestrator) runDirector(ctx context.Context, history []domain.HistoryTurn, text string, project domain.ProjectContext, onUpdate UpdateFunc) error {
	req := agents.Director(history, text, o.persona, project.DraftContent)
	return o.streamIntoPending(ctx, req, onUpdate)
}

func (o *Orchestrator) runWriter(ctx context.Context, text string, project domain.ProjectContext, onUpdate UpdateFunc) error {
	material := project.DraftContent
	if project.ResearchNotes != "" {
		if material != "" {
			material += "\n\n"
		}
		material += "## 研究资料\n" + project.ResearchNotes
	}

	req := agents.Writer(text, material, o.persona)
	return o.streamIntoPending(ctx, req, onUpdate)
}

func (o *Orchestrator) runEditor(ctx context.Context, text string, project domain.ProjectContext, onUpdate UpdateFunc) error {
	// A long pasted passage is the critique subject; otherwise the draft.
	content := project.DraftContent
	if utf8.RuneCountInString(text) > editorPasteThreshold {
		content = text
	}

	if strings.TrimSpace(content) == "" {
		chip := "先聊聊你想写什么"
		if project.Topic != "" {
			chip = "围绕「" + project.Topic + "」写一段初稿"
		}
		o.finalizePending(nothingToReviewReply, []string{chip}, onUpdate)
		return nil
	}

	req := agents.Editor(content, o.persona)
	return o.streamIntoPending(ctx, req, onUpdate)
}

func (o *Orchestrator) runResearcher(ctx context.Context, text string, project domain.ProjectContext, onUpdate UpdateFunc) error {
	req := agents.Researcher(text, project.DraftContent)

	reply, err := o.gw.Generate(ctx, req.Prompt, req.Config)
	if err != nil {
		return err
	}

	parsed := ParseSuggestions(reply)
	o.finalizePending(parsed.DisplayText, parsed.Suggestions, onUpdate)

	if parsed.DisplayText == "" {
		return nil
	}

	header := project.Topic
	if header == "" {
		header = truncateRunes(text, 20)
	}

	o.mu.Lock()
	o.project.ResearchNotes += "## " + header + "\n" + parsed.DisplayText + "\n\n"
	o.mu.Unlock()
	return nil
}

// applyFixes bypasses routing: the latest editor critique is replayed
// against the draft in a single shot and the draft is overwritten with the
// result.
func (o *Orchestrator) applyFixes(ctx context.Context, project domain.ProjectContext, onUpdate UpdateFunc) {
	critique := o.latestEditorCritique()
	if critique == "" {
		critique = fallbackCritique
	}

	o.appendPending(domain.AgentEditor, onUpdate)

	req := agents.ApplyFixes(project.DraftContent, critique, o.persona)
	revised, err := o.gw.Generate(ctx, req.Prompt, req.Config)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("apply-fixes call failed", "error", err)
		o.failPending(onUpdate)
		return
	}

	if strings.TrimSpace(revised) != "" {
		o.mu.Lock()
		o.project.DraftContent = revised
		o.mu.Unlock()
	}

	o.finalizePending(applyFixesConfirmation, applyFixesSuggestions, onUpdate)
}

func (o *Orchestrator) latestEditorCritique() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		m := o.messages[i]
		if m.Author == domain.RoleAgent && m.Agent == domain.AgentEditor && !m.Pending {
			return m.Text
		}
	}
	return ""
}

// extractTopic is best effort: failures are logged and swallowed, and the
// write is guarded so the topic is set at most once.
func (o *Orchestrator) extractTopic(ctx context.Context, text string) {
	defer o.background.Done()

	req := agents.Topic(text)
	reply, err := o.gw.Generate(ctx, req.Prompt, req.Config)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("topic extraction failed", "error", err)
		return
	}

	topic := strings.TrimSpace(reply)
	if topic == "" {
		return
	}

	o.mu.Lock()
	if o.project.Topic == "" {
		o.project.Topic = topic
	}
	o.mu.Unlock()
}

// ─────────────────────────────────────────────
// Pending-message lifecycle
// ─────────────────────────────────────────────

func (o *Orchestrator) appendPending(agent domain.AgentID, onUpdate UpdateFunc) {
	o.mu.Lock()
	msg := domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Author:    domain.RoleAgent,
		Agent:     agent,
		CreatedAt: o.now(),
		Pending:   true,
	}
	o.messages = append(o.messages, msg)
	o.pendingIdx = len(o.messages) - 1
	o.mu.Unlock()

	if onUpdate != nil {
		onUpdate(msg)
	}
}

// streamIntoPending consumes a model stream, applying each increment to the
// pending message in arrival order. The assembled text is re-parsed for
// suggestion chips on completion.
func (o *Orchestrator) streamIntoPending(ctx context.Context, req agents.Request, onUpdate UpdateFunc) error {
	stream, err := o.gw.GenerateStream(ctx, req.Prompt, req.Config)
	if err != nil {
		return err
	}

	var text string
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		text += delta
		o.updatePendingText(text, onUpdate)
	}

	parsed := ParseSuggestions(text)
	o.finalizePending(parsed.DisplayText, parsed.Suggestions, onUpdate)
	return nil
}

func (o *Orchestrator) updatePendingText(text string, onUpdate UpdateFunc) {
	o.mu.Lock()
	if o.pendingIdx < 0 {
		o.mu.Unlock()
		return
	}
	o.messages[o.pendingIdx].Text = text
	msg := o.messages[o.pendingIdx]
	o.mu.Unlock()

	if onUpdate != nil {
		onUpdate(msg)
	}
}

func (o *Orchestrator) finalizePending(text string, suggestions []string, onUpdate UpdateFunc) {
	o.mu.Lock()
	if o.pendingIdx < 0 {
		o.mu.Unlock()
		return
	}
	o.messages[o.pendingIdx].Text = text
	o.messages[o.pendingIdx].Suggestions = suggestions
	o.messages[o.pendingIdx].Pending = false
	msg := o.messages[o.pendingIdx]
	o.pendingIdx = -1
	o.mu.Unlock()

	if onUpdate != nil {
		onUpdate(msg)
	}
}

func (o *Orchestrator) failPending(onUpdate UpdateFunc) {
	o.finalizePending(genericErrorReply, nil, onUpdate)
}

// historyTurnsLocked converts the finalized log into (speaker, text) pairs
// for routing and the director prompt. Caller holds o.mu.
func (o *Orchestrator) historyTurnsLocked() []domain.HistoryTurn {
	out := make([]domain.HistoryTurn, 0, len(o.messages))
	for _, m := range o.messages {
		if m.Pending {
			continue
		}
		out = append(out, domain.HistoryTurn{Author: m.Author, Text: m.Text})
	}
	return out
}
