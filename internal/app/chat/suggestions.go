package chat

import (
	"errors"
	"strings"

	"github.com/quillhq/quill-agent/internal/app/agents"
	"github.com/quillhq/quill-agent/internal/jsonx"
	"github.com/quillhq/quill-agent/internal/observability"
)

// ParsedReply is an agent reply split into its display text and the
// follow-up suggestion chips.
type ParsedReply struct {
	DisplayText string
	Suggestions []string
}

// ParseSuggestions splits raw agent output on the suggestion marker. The
// marker is a best-effort convention: a missing marker or a malformed
// payload yields the trimmed text with no suggestions, never an error.
// Idempotent for any already-parsed display text.
func ParseSuggestions(raw string) ParsedReply {
	before, after, found := strings.Cut(raw, agents.SuggestionMarker)
	out := ParsedReply{DisplayText: strings.TrimSpace(before)}
	if !found {
		return out
	}

	suggestions, err := jsonx.ExtractStringArray(after)
	if err != nil {
		if !errors.Is(err, jsonx.ErrMalformedOutput) {
			observability.Logger().Warn("unexpected suggestion parse failure", "error", err)
		} else {
			observability.Logger().Debug("dropping malformed suggestion payload", "error", err)
		}
		return out
	}

	out.Suggestions = suggestions
	return out
}
