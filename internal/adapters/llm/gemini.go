package llm

import (
	"context"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"

	"github.com/quillhq/quill-agent/internal/domain"
)

// GeminiClient implements domain.ModelGateway on Vertex AI (Gemini).
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

type GeminiConfig struct {
	ProjectID string
	Location  string
	ModelName string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("gemini: project and location must be set")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: cfg.ModelName,
	}, nil
}

// Generate implements the single-shot half of domain.ModelGateway.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, cfg *domain.GenerateConfig) (string, error) {
	contents, genCfg := g.buildRequest(prompt, cfg)

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

// GenerateStream implements the streaming half. Chunks arrive in order;
// the returned stream ends with io.EOF.
func (g *GeminiClient) GenerateStream(ctx context.Context, prompt string, cfg *domain.GenerateConfig) (domain.Stream, error) {
	contents, genCfg := g.buildRequest(prompt, cfg)

	seq := g.client.Models.GenerateContentStream(ctx, g.modelName, contents, genCfg)
	next, stop := iter.Pull2(seq)

	return &geminiStream{next: next, stop: stop}, nil
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *geminiStream) Recv() (string, error) {
	chunk, err, ok := s.next()
	if !ok {
		s.stop()
		return "", io.EOF
	}
	if err != nil {
		s.stop()
		if err == io.EOF {
			return "", io.EOF
		}
		return "", fmt.Errorf("gemini stream: %w", err)
	}
	return chunk.Text(), nil
}

func (g *GeminiClient) buildRequest(prompt string, cfg *domain.GenerateConfig) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content

	temp := float32(0.7)
	topP := float32(0.9)
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: 8192,
	}

	if cfg != nil {
		for _, t := range cfg.History {
			role := genai.Role(genai.RoleUser)
			if t.Author == domain.RoleAgent {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(t.Text, role))
		}

		if cfg.EnableSearch {
			genCfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		}

		if cfg.ResponseSchema != nil {
			genCfg.ResponseMIMEType = "application/json"
			genCfg.ResponseSchema = convertSchema(cfg.ResponseSchema)
		}
	}

	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))
	return contents, genCfg
}

// convertSchema maps the gateway-neutral JSON-schema shape onto a Gemini
// schema. Best effort for the shapes the prompt library actually uses
// (objects of scalar fields, arrays of strings).
func convertSchema(s map[string]any) *genai.Schema {
	gs := &genai.Schema{}

	typ, _ := s["type"].(string)
	switch typ {
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	case "array":
		gs.Type = genai.TypeArray
		if items, ok := s["items"].(map[string]any); ok {
			gs.Items = convertSchema(items)
		}
	default:
		gs.Type = genai.TypeObject
		if props, ok := s["properties"].(map[string]any); ok {
			gs.Properties = map[string]*genai.Schema{}
			for name, raw := range props {
				if p, ok := raw.(map[string]any); ok {
					gs.Properties[name] = convertSchema(p)
				}
			}
		}
		if req, ok := s["required"].([]string); ok {
			gs.Required = req
		}
	}

	return gs
}
