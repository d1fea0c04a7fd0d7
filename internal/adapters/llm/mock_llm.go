package llm

import (
	"context"
	"io"
	"sync"

	"github.com/quillhq/quill-agent/internal/domain"
)

// MockCall records one gateway invocation for assertions.
type MockCall struct {
	Prompt   string
	Config   *domain.GenerateConfig
	Streamed bool
}

type mockReply struct {
	text   string
	chunks []string
	err    error
}

// MockGateway is a scripted domain.ModelGateway. Replies are consumed in
// queue order; with an empty queue it answers with a fixed canned reply so
// the service stays usable in local mode without credentials.
//
// When background calls interleave with the turn (topic extraction), queue
// order is not deterministic; tests set OnGenerate/OnStream to answer by
// inspecting the prompt instead.
type MockGateway struct {
	OnGenerate func(prompt string, cfg *domain.GenerateConfig) (string, error)
	OnStream   func(prompt string, cfg *domain.GenerateConfig) ([]string, error)

	mu      sync.Mutex
	calls   []MockCall
	replies []mockReply
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

const cannedReply = "我在听。多说一点，我们把它写下来。"

// QueueReply scripts the next single-shot (or single-chunk stream) reply.
func (m *MockGateway) QueueReply(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{text: text})
}

// QueueStream scripts the next streamed reply as explicit chunks.
func (m *MockGateway) QueueStream(chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{chunks: chunks})
}

// QueueError scripts the next call to fail outright.
func (m *MockGateway) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{err: err})
}

// QueueStreamError scripts a stream that yields chunks and then fails.
func (m *MockGateway) QueueStreamError(err error, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{chunks: chunks, err: err})
}

// Calls returns a copy of every recorded invocation.
func (m *MockGateway) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockGateway) pop(call MockCall) mockReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if len(m.replies) == 0 {
		return mockReply{text: cannedReply}
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r
}

func (m *MockGateway) record(call MockCall) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *MockGateway) Generate(ctx context.Context, prompt string, cfg *domain.GenerateConfig) (string, error) {
	if m.OnGenerate != nil {
		m.record(MockCall{Prompt: prompt, Config: cfg})
		return m.OnGenerate(prompt, cfg)
	}

	r := m.pop(MockCall{Prompt: prompt, Config: cfg})
	if r.err != nil && len(r.chunks) == 0 {
		return "", r.err
	}
	if len(r.chunks) > 0 {
		var text string
		for _, c := range r.chunks {
			text += c
		}
		return text, nil
	}
	return r.text, nil
}

func (m *MockGateway) GenerateStream(ctx context.Context, prompt string, cfg *domain.GenerateConfig) (domain.Stream, error) {
	if m.OnStream != nil {
		m.record(MockCall{Prompt: prompt, Config: cfg, Streamed: true})
		chunks, err := m.OnStream(prompt, cfg)
		if err != nil {
			return nil, err
		}
		return &mockStream{chunks: chunks}, nil
	}

	r := m.pop(MockCall{Prompt: prompt, Config: cfg, Streamed: true})
	if r.err != nil && len(r.chunks) == 0 {
		return nil, r.err
	}

	chunks := r.chunks
	if len(chunks) == 0 && r.text != "" {
		chunks = []string{r.text}
	}
	return &mockStream{chunks: chunks, err: r.err}, nil
}

type mockStream struct {
	chunks []string
	err    error
	idx    int
}

func (s *mockStream) Recv() (string, error) {
	if s.idx < len(s.chunks) {
		c := s.chunks[s.idx]
		s.idx++
		return c, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}
