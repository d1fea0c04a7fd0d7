package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/quillhq/quill-agent/internal/app/chat"
	personaapp "github.com/quillhq/quill-agent/internal/app/persona"
	"github.com/quillhq/quill-agent/internal/domain"
	"github.com/quillhq/quill-agent/internal/jsonx"
)

type Server struct {
	personas *personaapp.Service
	convs    *chat.Registry
}

func NewServer(personas *personaapp.Service, convs *chat.Registry) http.Handler {
	s := &Server{personas: personas, convs: convs}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /personas        → POST: analyze + save, GET: list
	// /personas/{id}   → DELETE
	mux.HandleFunc("/personas", s.handlePersonas)
	mux.HandleFunc("/personas/", s.handlePersonaWithID)

	// /conversations                         → POST: create
	// /conversations/{id}                    → GET: messages + project context
	// /conversations/{id}/draft              → PUT: replace draft
	// /conversations/{id}/messages           → POST: run a turn
	// /conversations/{id}/messages/stream    → POST: run a turn, SSE deltas
	mux.HandleFunc("/conversations", s.handleConversations)
	mux.HandleFunc("/conversations/", s.handleConversationWithID)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createPersonaRequest struct {
	Name       string   `json:"name"`
	SourceText string   `json:"source_text"`
	SourceURLs []string `json:"source_urls,omitempty"`
}

type personaResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Analysis  domain.StyleAnalysis `json:"analysis"`
	CreatedAt time.Time            `json:"created_at"`
}

type createConversationRequest struct {
	PersonaID string `json:"persona_id,omitempty"`
}

type conversationResponse struct {
	ID        string `json:"id"`
	PersonaID string `json:"persona_id,omitempty"`
}

type messageResponse struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Agent       string    `json:"agent,omitempty"`
	Text        string    `json:"text"`
	Pending     bool      `json:"pending"`
	Suggestions []string  `json:"suggestions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type projectResponse struct {
	Topic         string `json:"topic"`
	DraftContent  string `json:"draft_content"`
	ResearchNotes string `json:"research_notes"`
}

type conversationStateResponse struct {
	Conversation conversationResponse `json:"conversation"`
	Messages     []messageResponse    `json:"messages"`
	Project      projectResponse      `json:"project"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type setDraftRequest struct {
	Content string `json:"content"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreatePersona(w, r)
	case http.MethodGet:
		s.handleListPersonas(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePersonaWithID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/personas/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		s.handleDeletePersona(w, r, domain.PersonaID(id))
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateConversation(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleConversationWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/conversations/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	conv, ok := s.convs.Get(domain.ConversationID(parts[0]))
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetConversation(w, r, conv)
	case len(parts) == 2 && parts[1] == "draft" && r.Method == http.MethodPut:
		s.handleSetDraft(w, r, conv)
	case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodPost:
		s.handleSendMessage(w, r, conv)
	case len(parts) == 3 && parts[1] == "messages" && parts[2] == "stream" && r.Method == http.MethodPost:
		s.handleSendMessageStream(w, r, conv)
	default:
		http.NotFound(w, r)
	}
}

// ─────────────────────────────────────────────
// Persona handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var req createPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.SourceText) == "" {
		badRequest(w, "source_text is required")
		return
	}

	p, err := s.personas.Analyze(r.Context(), personaapp.AnalyzeInput{
		Name:       req.Name,
		SourceText: req.SourceText,
		SourceURLs: req.SourceURLs,
	})
	if err != nil {
		if errors.Is(err, jsonx.ErrMalformedOutput) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": "style analysis produced no usable profile",
			})
			return
		}
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPersonaResponse(p))
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	all, err := s.personas.List(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}

	out := make([]personaResponse, 0, len(all))
	for _, p := range all {
		out = append(out, toPersonaResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"personas": out})
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request, id domain.PersonaID) {
	if err := s.personas.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrPersonaNotFound) {
			http.NotFound(w, r)
			return
		}
		internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────
// Conversation handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	var persona *domain.Persona
	if req.PersonaID != "" {
		p, err := s.personas.GetByID(r.Context(), domain.PersonaID(req.PersonaID))
		if err != nil {
			if errors.Is(err, domain.ErrPersonaNotFound) {
				badRequest(w, "unknown persona_id")
				return
			}
			internalError(w, err)
			return
		}
		persona = p
	}

	conv := s.convs.Create(persona)
	writeJSON(w, http.StatusCreated, toConversationResponse(conv))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, conv *chat.Orchestrator) {
	writeJSON(w, http.StatusOK, toStateResponse(conv))
}

func (s *Server) handleSetDraft(w http.ResponseWriter, r *http.Request, conv *chat.Orchestrator) {
	var req setDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	conv.SetDraft(req.Content)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, conv *chat.Orchestrator) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	if err := conv.HandleTurn(r.Context(), req.Text, nil); err != nil {
		if errors.Is(err, chat.ErrTurnInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "a turn is already in progress",
			})
			return
		}
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStateResponse(conv))
}

// handleSendMessageStream runs the turn while forwarding every message
// update as one SSE event; a final "done" event carries the project state.
func (s *Server) handleSendMessageStream(w http.ResponseWriter, r *http.Request, conv *chat.Orchestrator) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent := func(event string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			return
		}
		_, _ = w.Write([]byte("event: " + event + "\ndata: " + string(payload) + "\n\n"))
		flusher.Flush()
	}

	err := conv.HandleTurn(r.Context(), req.Text, func(m domain.Message) {
		writeEvent("message", toMessageResponse(m))
	})
	if err != nil {
		writeEvent("error", map[string]string{"error": err.Error()})
		return
	}

	p := conv.Project()
	writeEvent("done", projectResponse{
		Topic:         p.Topic,
		DraftContent:  p.DraftContent,
		ResearchNotes: p.ResearchNotes,
	})
}

// ─────────────────────────────────────────────
// Response helpers
// ─────────────────────────────────────────────

func toPersonaResponse(p *domain.Persona) personaResponse {
	return personaResponse{
		ID:        string(p.ID),
		Name:      p.Name,
		Analysis:  p.Analysis,
		CreatedAt: p.CreatedAt,
	}
}

func toConversationResponse(conv *chat.Orchestrator) conversationResponse {
	resp := conversationResponse{ID: string(conv.ID())}
	if p := conv.Persona(); p != nil {
		resp.PersonaID = string(p.ID)
	}
	return resp
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:          string(m.ID),
		Author:      string(m.Author),
		Agent:       string(m.Agent),
		Text:        m.Text,
		Pending:     m.Pending,
		Suggestions: m.Suggestions,
		CreatedAt:   m.CreatedAt,
	}
}

func toStateResponse(conv *chat.Orchestrator) conversationStateResponse {
	msgs := conv.Messages()
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}

	p := conv.Project()
	return conversationStateResponse{
		Conversation: toConversationResponse(conv),
		Messages:     out,
		Project: projectResponse{
			Topic:         p.Topic,
			DraftContent:  p.DraftContent,
			ResearchNotes: p.ResearchNotes,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
