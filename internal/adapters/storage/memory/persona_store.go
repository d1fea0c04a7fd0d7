package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/quillhq/quill-agent/internal/domain"
)

// PersonaStore is a simple in-memory implementation of domain.PersonaStore.
// It is NOT persistent and is only suitable for development / local mode.
type PersonaStore struct {
	mu       sync.RWMutex
	personas map[domain.PersonaID]*domain.Persona
}

func NewPersonaStore() *PersonaStore {
	return &PersonaStore{
		personas: make(map[domain.PersonaID]*domain.Persona),
	}
}

func (s *PersonaStore) SavePersona(ctx context.Context, p *domain.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.personas[p.ID] = &cp
	return nil
}

func (s *PersonaStore) DeletePersona(ctx context.Context, id domain.PersonaID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.personas[id]; !ok {
		return domain.ErrPersonaNotFound
	}
	delete(s.personas, id)
	return nil
}

func (s *PersonaStore) ListPersonas(ctx context.Context) ([]*domain.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Persona, 0, len(s.personas))
	for _, p := range s.personas {
		cp := *p
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
