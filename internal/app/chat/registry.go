package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/quillhq/quill-agent/internal/domain"
)

// Registry holds the live conversations, one orchestrator each.
// Conversations are in-process state: the front-end re-creates them per
// writing session, only personas persist.
type Registry struct {
	gw domain.ModelGateway

	mu    sync.RWMutex
	convs map[domain.ConversationID]*Orchestrator
}

func NewRegistry(gw domain.ModelGateway) *Registry {
	return &Registry{
		gw:    gw,
		convs: make(map[domain.ConversationID]*Orchestrator),
	}
}

// Create starts a new conversation bound to persona (nil allowed).
func (r *Registry) Create(persona *domain.Persona) *Orchestrator {
	o := NewOrchestrator(domain.ConversationID(uuid.NewString()), r.gw, persona)

	r.mu.Lock()
	r.convs[o.ID()] = o
	r.mu.Unlock()

	return o
}

func (r *Registry) Get(id domain.ConversationID) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.convs[id]
	return o, ok
}
