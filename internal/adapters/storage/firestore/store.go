package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quillhq/quill-agent/internal/domain"
)

// Store implements domain.PersonaStore on Firestore.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore-backed persona store for the given project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) personasCol() *firestore.CollectionRef {
	return s.client.Collection("personas")
}

func (s *Store) personaDoc(id domain.PersonaID) *firestore.DocumentRef {
	return s.personasCol().Doc(string(id))
}

type personaDoc struct {
	Name        string    `firestore:"name"`
	Overview    string    `firestore:"overview"`
	Methodology string    `firestore:"methodology"`
	Mindset     string    `firestore:"mindset"`
	Expression  string    `firestore:"expression"`
	Habits      string    `firestore:"habits"`
	Markers     string    `firestore:"markers"`
	CreatedAt   time.Time `firestore:"created_at"`
	SourceText  string    `firestore:"source_text"`
	SourceURLs  []string  `firestore:"source_urls"`
}

func toDoc(p *domain.Persona) personaDoc {
	return personaDoc{
		Name:        p.Name,
		Overview:    p.Analysis.Overview,
		Methodology: p.Analysis.Methodology,
		Mindset:     p.Analysis.Mindset,
		Expression:  p.Analysis.Expression,
		Habits:      p.Analysis.Habits,
		Markers:     p.Analysis.Markers,
		CreatedAt:   p.CreatedAt,
		SourceText:  p.SourceText,
		SourceURLs:  p.SourceURLs,
	}
}

func fromDoc(id domain.PersonaID, d personaDoc) *domain.Persona {
	return &domain.Persona{
		ID:   id,
		Name: d.Name,
		Analysis: domain.StyleAnalysis{
			Overview:    d.Overview,
			Methodology: d.Methodology,
			Mindset:     d.Mindset,
			Expression:  d.Expression,
			Habits:      d.Habits,
			Markers:     d.Markers,
		},
		CreatedAt:  d.CreatedAt,
		SourceText: d.SourceText,
		SourceURLs: d.SourceURLs,
	}
}

// SavePersona writes the whole record; there is no partial update.
func (s *Store) SavePersona(ctx context.Context, p *domain.Persona) error {
	_, err := s.personaDoc(p.ID).Set(ctx, toDoc(p))
	if err != nil {
		return fmt.Errorf("firestore SavePersona: %w", err)
	}
	return nil
}

func (s *Store) DeletePersona(ctx context.Context, id domain.PersonaID) error {
	snap, err := s.personaDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrPersonaNotFound
		}
		return fmt.Errorf("firestore DeletePersona: %w", err)
	}

	if _, err := snap.Ref.Delete(ctx); err != nil {
		return fmt.Errorf("firestore DeletePersona: %w", err)
	}
	return nil
}

func (s *Store) ListPersonas(ctx context.Context) ([]*domain.Persona, error) {
	iter := s.personasCol().OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []*domain.Persona
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListPersonas: %w", err)
		}

		var doc personaDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode personaDoc: %w", err)
		}

		out = append(out, fromDoc(domain.PersonaID(snap.Ref.ID), doc))
	}
	return out, nil
}
