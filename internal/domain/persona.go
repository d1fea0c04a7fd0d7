package domain

import "time"

// StyleAnalysis is the six-field style profile the analyst produces.
// Each field is free-text Markdown.
type StyleAnalysis struct {
	Overview    string `json:"overview"`
	Methodology string `json:"methodology"`
	Mindset     string `json:"mindset"`
	Expression  string `json:"expression"`
	Habits      string `json:"habits"`
	Markers     string `json:"markers"`
}

// Persona is a saved style profile used to bias agent prompt construction.
// Consumed read-only by every agent prompt; never mutated after creation.
type Persona struct {
	ID        PersonaID
	Name      string
	Analysis  StyleAnalysis
	CreatedAt time.Time

	// Provenance of the analyzed material, when known.
	SourceText string
	SourceURLs []string
}
