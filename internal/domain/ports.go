package domain

import (
	"context"
	"errors"
)

// HistoryTurn is one prior conversation turn passed to the model.
type HistoryTurn struct {
	Author Role
	Text   string
}

// GenerateConfig is the optional generation configuration a prompt builder
// may attach to a gateway request. The zero value means plain text-in,
// text-out.
type GenerateConfig struct {
	// History, when non-empty, is sent as structured conversation turns
	// preceding the prompt.
	History []HistoryTurn

	// ResponseSchema, when non-nil, asks the model to emit JSON matching
	// the schema. Best effort; callers still parse tolerantly.
	ResponseSchema map[string]any

	// EnableSearch lets the model use its external search tool.
	EnableSearch bool
}

// Stream yields text increments in arrival order.
// Recv returns io.EOF once the stream is complete.
type Stream interface {
	Recv() (string, error)
}

// ModelGateway defines how the core interacts with the hosted model service.
// All agent "intelligence" goes through these two calls.
type ModelGateway interface {
	Generate(ctx context.Context, prompt string, cfg *GenerateConfig) (string, error)
	GenerateStream(ctx context.Context, prompt string, cfg *GenerateConfig) (Stream, error)
}

// ErrPersonaNotFound is returned by PersonaStore lookups and deletes.
var ErrPersonaNotFound = errors.New("persona not found")

// PersonaStore defines persona persistence. Records are written whole on
// every mutation; there is no partial update.
type PersonaStore interface {
	SavePersona(ctx context.Context, p *Persona) error
	DeletePersona(ctx context.Context, id PersonaID) error
	ListPersonas(ctx context.Context) ([]*Persona, error)
}
