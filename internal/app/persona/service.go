// Package persona implements the style-analysis flow: source text in,
// saved six-field style profile out.
package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill-agent/internal/app/agents"
	"github.com/quillhq/quill-agent/internal/domain"
	"github.com/quillhq/quill-agent/internal/jsonx"
	"github.com/quillhq/quill-agent/internal/observability"
)

type Service struct {
	gw    domain.ModelGateway
	store domain.PersonaStore
	now   func() time.Time
}

func NewService(gw domain.ModelGateway, store domain.PersonaStore) *Service {
	return &Service{
		gw:    gw,
		store: store,
		now:   time.Now,
	}
}

type AnalyzeInput struct {
	Name       string
	SourceText string
	SourceURLs []string
}

// Analyze runs the analyst over the source material and persists the
// resulting persona. A jsonx.ErrMalformedOutput wrap means the model
// produced no usable profile; the caller is expected to surface that.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (*domain.Persona, error) {
	if strings.TrimSpace(in.SourceText) == "" {
		return nil, fmt.Errorf("source text is required")
	}

	log := observability.LoggerFromContext(ctx).With("persona_name", in.Name)
	log.Info("analyzing writing style")

	req := agents.Analyst(in.SourceText, in.SourceURLs)
	raw, err := s.gw.Generate(ctx, req.Prompt, req.Config)
	if err != nil {
		log.Error("analyst call failed", "error", err)
		return nil, fmt.Errorf("style analysis: %w", err)
	}

	var analysis domain.StyleAnalysis
	if err := jsonx.ExtractObject(raw, &analysis); err != nil {
		log.Error("analyst output unusable", "error", err)
		return nil, fmt.Errorf("style analysis: %w", err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "未命名风格"
	}

	p := &domain.Persona{
		ID:         domain.PersonaID(uuid.NewString()),
		Name:       name,
		Analysis:   analysis,
		CreatedAt:  s.now(),
		SourceText: in.SourceText,
		SourceURLs: in.SourceURLs,
	}

	if err := s.store.SavePersona(ctx, p); err != nil {
		log.Error("failed to save persona", "error", err)
		return nil, err
	}

	log.Info("persona saved", "persona_id", p.ID)
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Persona, error) {
	return s.store.ListPersonas(ctx)
}

func (s *Service) Delete(ctx context.Context, id domain.PersonaID) error {
	return s.store.DeletePersona(ctx, id)
}

// GetByID is a convenience over List; the store holds at most a handful of personas.
func (s *Service) GetByID(ctx context.Context, id domain.PersonaID) (*domain.Persona, error) {
	all, err := s.store.ListPersonas(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrPersonaNotFound
}
