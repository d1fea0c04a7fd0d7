package chat_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill-agent/internal/adapters/llm"
	"github.com/quillhq/quill-agent/internal/app/agents"
	"github.com/quillhq/quill-agent/internal/app/chat"
	"github.com/quillhq/quill-agent/internal/domain"
)

// Prompt fingerprints: every builder embeds a role line the tests can key
// dispatch on without depending on full prompt text.
const (
	routerFingerprint     = "请求分类器"
	topicFingerprint      = "概括"
	researcherFingerprint = "研究员"
	applyFixesFingerprint = "修改后的完整草稿"
)

func lastMessage(t *testing.T, o *chat.Orchestrator) domain.Message {
	t.Helper()
	msgs := o.Messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func countRouterCalls(gw *llm.MockGateway) int {
	n := 0
	for _, c := range gw.Calls() {
		if strings.Contains(c.Prompt, routerFingerprint) {
			n++
		}
	}
	return n
}

// Scenario: vague first message routes to the director, streams a reply
// with chips, and fires topic extraction as a side effect.
func TestFirstTurnRoutesToDirectorAndExtractsTopic(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		switch {
		case strings.Contains(prompt, routerFingerprint):
			return "director", nil
		case strings.Contains(prompt, topicFingerprint):
			return "咖啡文化", nil
		}
		return "", fmt.Errorf("unexpected generate call")
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		return []string{
			"写咖啡是个好主意。",
			"我们可以先定一个角度。",
			agents.SuggestionMarker + `["从个人故事切入", "先定文章结构", "让研究员查查资料"]`,
		}, nil
	}

	o := chat.NewOrchestrator("conv-a", gw, nil)
	require.NoError(t, o.HandleTurn(context.Background(), "我想写一篇关于咖啡的文章", nil))
	o.WaitBackground()

	msg := lastMessage(t, o)
	assert.Equal(t, domain.RoleAgent, msg.Author)
	assert.Equal(t, domain.AgentDirector, msg.Agent)
	assert.False(t, msg.Pending)
	assert.Equal(t, "写咖啡是个好主意。我们可以先定一个角度。", msg.Text)
	assert.GreaterOrEqual(t, len(msg.Suggestions), 2)
	assert.LessOrEqual(t, len(msg.Suggestions), 4)

	assert.Equal(t, "咖啡文化", o.Project().Topic)
}

// For N increments the assembled text is their in-order concatenation, and
// the message leaves pending only after the last one is applied.
func TestStreamAssemblyOrderAndPendingFlag(t *testing.T) {
	chunks := []string{"一", "二", "三", "四", "五"}

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		return "director", nil
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		return chunks, nil
	}

	o := chat.NewOrchestrator("conv-stream", gw, nil)

	var snapshots []domain.Message
	err := o.HandleTurn(context.Background(), "测试流式输出", func(m domain.Message) {
		snapshots = append(snapshots, m)
	})
	require.NoError(t, err)

	// placeholder + one per chunk + finalization
	require.Len(t, snapshots, len(chunks)+2)
	assert.True(t, snapshots[0].Pending)
	assert.Empty(t, snapshots[0].Text)

	var assembled string
	for i, c := range chunks {
		assembled += c
		snap := snapshots[i+1]
		assert.True(t, snap.Pending, "chunk %d", i)
		assert.Equal(t, assembled, snap.Text, "chunk %d", i)
	}

	final := snapshots[len(snapshots)-1]
	assert.False(t, final.Pending)
	assert.Equal(t, strings.Join(chunks, ""), final.Text)
}

// Scenario: the apply-fixes command bypasses the router, replays the latest
// editor critique against the draft, and overwrites the draft.
func TestApplyFixesCommand(t *testing.T) {
	const draft = "这是当前草稿，讲了咖啡的历史，但是开头平淡。"
	const critique = "逻辑混乱，开头太弱"
	const revised = "修改后的草稿全文，开头有了具体场景。"

	var applyPrompt string

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		switch {
		case strings.Contains(prompt, routerFingerprint):
			return "editor", nil
		case strings.Contains(prompt, topicFingerprint):
			return "咖啡", nil
		case strings.Contains(prompt, applyFixesFingerprint):
			applyPrompt = prompt
			return revised, nil
		}
		return "", fmt.Errorf("unexpected generate call")
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		return []string{critique}, nil
	}

	o := chat.NewOrchestrator("conv-b", gw, nil)
	o.SetDraft(draft)

	// Turn 1 routes to the editor and leaves a critique in the log.
	require.NoError(t, o.HandleTurn(context.Background(), "帮我看看这版草稿", nil))
	require.Equal(t, critique, lastMessage(t, o).Text)
	require.Equal(t, 1, countRouterCalls(gw))

	// Turn 2: the exact command literal. No routing.
	require.NoError(t, o.HandleTurn(context.Background(), chat.ApplyFixesCommand, nil))
	assert.Equal(t, 1, countRouterCalls(gw), "apply-fixes must not call the router")

	assert.Contains(t, applyPrompt, critique)
	assert.Contains(t, applyPrompt, draft)

	assert.Equal(t, revised, o.Project().DraftContent)

	msg := lastMessage(t, o)
	assert.Equal(t, domain.AgentEditor, msg.Agent)
	assert.False(t, msg.Pending)
	assert.NotEmpty(t, msg.Text)
	assert.Len(t, msg.Suggestions, 3)
}

// Without a prior critique the command still bypasses routing and falls
// back to a generic instruction; an empty model reply leaves the draft
// untouched.
func TestApplyFixesWithoutCritiqueKeepsDraftOnEmptyReply(t *testing.T) {
	const draft = "只有草稿，没有编辑意见。"

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		if strings.Contains(prompt, applyFixesFingerprint) {
			return "", nil
		}
		return "", fmt.Errorf("unexpected generate call")
	}

	o := chat.NewOrchestrator("conv-fallback", gw, nil)
	o.SetDraft(draft)

	require.NoError(t, o.HandleTurn(context.Background(), chat.ApplyFixesCommand, nil))

	assert.Zero(t, countRouterCalls(gw))
	assert.Equal(t, draft, o.Project().DraftContent)
	assert.False(t, lastMessage(t, o).Pending)
}

// Scenario: a long pasted passage is the critique subject, not the draft.
func TestEditorCritiquesPastedProseOverDraft(t *testing.T) {
	pasted := strings.Repeat("清晨的咖啡馆里没有人说话。", 7) // 84 runes
	const draft = "草稿内容，不应该被点评。"

	var editorPrompt string

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		if strings.Contains(prompt, routerFingerprint) {
			return "editor", nil
		}
		if strings.Contains(prompt, topicFingerprint) {
			return "咖啡馆", nil
		}
		return "", fmt.Errorf("unexpected generate call")
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		editorPrompt = prompt
		return []string{"重复感太强，可以删掉一半。"}, nil
	}

	o := chat.NewOrchestrator("conv-c", gw, nil)
	o.SetDraft(draft)

	require.NoError(t, o.HandleTurn(context.Background(), pasted, nil))

	assert.Contains(t, editorPrompt, pasted)
	assert.NotContains(t, editorPrompt, draft)
}

// A short editor turn with no draft and no pasted content finalizes with
// the nothing-to-review reply instead of calling the model.
func TestEditorWithNothingToReview(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		if strings.Contains(prompt, routerFingerprint) {
			return "editor", nil
		}
		if strings.Contains(prompt, topicFingerprint) {
			return "新文章", nil
		}
		return "", fmt.Errorf("unexpected generate call")
	}

	o := chat.NewOrchestrator("conv-empty-editor", gw, nil)
	require.NoError(t, o.HandleTurn(context.Background(), "帮我点评一下", nil))

	msg := lastMessage(t, o)
	assert.False(t, msg.Pending)
	assert.NotEmpty(t, msg.Text)
	assert.Len(t, msg.Suggestions, 1)

	for _, c := range gw.Calls() {
		assert.False(t, c.Streamed, "no stream call expected")
	}
}

// Scenario: a gateway failure on the director path collapses into the
// fixed error reply, the pending flag clears, and the next turn runs.
func TestGatewayFailureSubstitutesErrorReply(t *testing.T) {
	fail := true

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		if strings.Contains(prompt, topicFingerprint) {
			return "测试", nil
		}
		return "director", nil
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		if fail {
			return nil, errors.New("gateway exploded")
		}
		return []string{"这次成功了。"}, nil
	}

	o := chat.NewOrchestrator("conv-d", gw, nil)
	require.NoError(t, o.HandleTurn(context.Background(), "写点什么吧", nil))

	failed := lastMessage(t, o)
	assert.False(t, failed.Pending)
	assert.NotEmpty(t, failed.Text)
	assert.Empty(t, failed.Suggestions)

	// The substituted text is a fixed literal: a second failure produces
	// the identical message.
	require.NoError(t, o.HandleTurn(context.Background(), "再试一次", nil))
	assert.Equal(t, failed.Text, lastMessage(t, o).Text)

	// And the turn guard is clear: a successful turn still goes through.
	fail = false
	require.NoError(t, o.HandleTurn(context.Background(), "第三次", nil))
	assert.Equal(t, "这次成功了。", lastMessage(t, o).Text)
}

// Researcher results land in the message log and accumulate in the
// project's research notes, with the search tool enabled on the call.
func TestResearcherAppendsNotes(t *testing.T) {
	const finding = "咖啡豆的三大产区是非洲、拉美和亚太。"

	var researchCfg *domain.GenerateConfig

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		switch {
		case strings.Contains(prompt, routerFingerprint):
			return "researcher", nil
		case strings.Contains(prompt, topicFingerprint):
			return "咖啡产区", nil
		case strings.Contains(prompt, researcherFingerprint):
			researchCfg = cfg
			return finding + agents.SuggestionMarker + `["整理进草稿", "继续查产量数据"]`, nil
		}
		return "", fmt.Errorf("unexpected generate call")
	}

	o := chat.NewOrchestrator("conv-research", gw, nil)

	var snapshots []domain.Message
	err := o.HandleTurn(context.Background(), "查查咖啡豆的产地", func(m domain.Message) {
		snapshots = append(snapshots, m)
	})
	require.NoError(t, err)

	// The single-shot reply still reaches the callback as a finalized update.
	require.NotEmpty(t, snapshots)
	final := snapshots[len(snapshots)-1]
	assert.False(t, final.Pending)
	assert.Equal(t, finding, final.Text)
	assert.Len(t, final.Suggestions, 2)

	msg := lastMessage(t, o)
	assert.Equal(t, domain.AgentResearcher, msg.Agent)
	assert.Equal(t, finding, msg.Text)
	assert.Len(t, msg.Suggestions, 2)

	notes := o.Project().ResearchNotes
	assert.Contains(t, notes, finding)
	assert.True(t, strings.HasPrefix(notes, "## "))

	require.NotNil(t, researchCfg)
	assert.True(t, researchCfg.EnableSearch)
}

// The writer receives draft and accumulated research notes as material.
func TestWriterThreadsDraftAndNotes(t *testing.T) {
	const draft = "草稿第一段。"

	var writerPrompt string

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		switch {
		case strings.Contains(prompt, routerFingerprint) && strings.Contains(prompt, "接着写第二段"):
			return "writer", nil
		case strings.Contains(prompt, routerFingerprint):
			return "researcher", nil
		case strings.Contains(prompt, topicFingerprint):
			return "咖啡", nil
		case strings.Contains(prompt, researcherFingerprint):
			return "产地资料。", nil
		}
		return "", fmt.Errorf("unexpected generate call")
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		writerPrompt = prompt
		return []string{"第二段写好了。"}, nil
	}

	o := chat.NewOrchestrator("conv-writer", gw, nil)
	o.SetDraft(draft)

	require.NoError(t, o.HandleTurn(context.Background(), "查咖啡产地", nil))
	require.NoError(t, o.HandleTurn(context.Background(), "接着写第二段", nil))

	assert.Contains(t, writerPrompt, draft)
	assert.Contains(t, writerPrompt, "产地资料。")
}

// The latest user input travels in its own prompt block; the history that
// accompanies it stops at the previous turn.
func TestHistoryExcludesLatestMessage(t *testing.T) {
	var routerPrompt string
	var directorHistory []domain.HistoryTurn

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		if strings.Contains(prompt, topicFingerprint) {
			return "话题", nil
		}
		routerPrompt = prompt
		return "director", nil
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		if cfg != nil {
			directorHistory = cfg.History
		}
		return []string{"第一轮的回复"}, nil
	}

	o := chat.NewOrchestrator("conv-history", gw, nil)
	require.NoError(t, o.HandleTurn(context.Background(), "第一句话", nil))
	o.WaitBackground()
	require.NoError(t, o.HandleTurn(context.Background(), "第二句话", nil))

	assert.Equal(t, 1, strings.Count(routerPrompt, "第二句话"),
		"latest input must appear once, not again as a history turn")

	require.NotEmpty(t, directorHistory)
	texts := make([]string, 0, len(directorHistory))
	for _, turn := range directorHistory {
		texts = append(texts, turn.Text)
	}
	assert.Contains(t, texts, "第一句话")
	assert.Contains(t, texts, "第一轮的回复")
	assert.NotContains(t, texts, "第二句话")
}

func TestEmptyInputIsNoOp(t *testing.T) {
	gw := llm.NewMockGateway()
	o := chat.NewOrchestrator("conv-noop", gw, nil)

	require.NoError(t, o.HandleTurn(context.Background(), "   \n\t ", nil))
	assert.Empty(t, o.Messages())
	assert.Empty(t, gw.Calls())
}

// A turn started while another is streaming is rejected outright. The
// nested call happens inside the update callback, while the guard is held.
func TestOverlappingTurnRejected(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		if strings.Contains(prompt, topicFingerprint) {
			return "测试", nil
		}
		return "director", nil
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		return []string{"回复"}, nil
	}

	o := chat.NewOrchestrator("conv-overlap", gw, nil)

	var nestedErr error
	err := o.HandleTurn(context.Background(), "第一轮", func(domain.Message) {
		if nestedErr == nil {
			nestedErr = o.HandleTurn(context.Background(), "插队的一轮", nil)
		}
	})
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, chat.ErrTurnInProgress)
}

// Topic extraction failures are swallowed; the turn itself is unaffected.
func TestTopicExtractionFailureIsSwallowed(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		if strings.Contains(prompt, topicFingerprint) {
			return "", errors.New("topic model down")
		}
		return "director", nil
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		return []string{"正常回复"}, nil
	}

	o := chat.NewOrchestrator("conv-topic-fail", gw, nil)
	require.NoError(t, o.HandleTurn(context.Background(), "我想写一篇游记", nil))
	o.WaitBackground()

	assert.Empty(t, o.Project().Topic)
	assert.Equal(t, "正常回复", lastMessage(t, o).Text)
}

// The topic is written at most once.
func TestTopicSetAtMostOnce(t *testing.T) {
	topics := []string{"第一主题", "第二主题"}
	i := 0

	gw := llm.NewMockGateway()
	gw.OnGenerate = func(prompt string, cfg *domain.GenerateConfig) (string, error) {
		if strings.Contains(prompt, topicFingerprint) {
			topic := topics[i%len(topics)]
			i++
			return topic, nil
		}
		return "director", nil
	}
	gw.OnStream = func(prompt string, cfg *domain.GenerateConfig) ([]string, error) {
		return []string{"好的"}, nil
	}

	o := chat.NewOrchestrator("conv-topic-once", gw, nil)
	require.NoError(t, o.HandleTurn(context.Background(), "我想写写故乡", nil))
	o.WaitBackground()
	require.NoError(t, o.HandleTurn(context.Background(), "换个主题写写大海", nil))
	o.WaitBackground()

	assert.Equal(t, "第一主题", o.Project().Topic)
}
