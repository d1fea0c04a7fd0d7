package domain

type ConversationID string
type PersonaID string
type MessageID string

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// AgentID names one of the five prompt-defined agents.
type AgentID string

const (
	AgentAnalyst    AgentID = "analyst"    // style analysis, never a router target
	AgentDirector   AgentID = "director"   // lead writer, routing default
	AgentResearcher AgentID = "researcher" // topic research with search tool
	AgentWriter     AgentID = "writer"     // execution writing
	AgentEditor     AgentID = "editor"     // critique
)

// RoutableAgents is the closed set a router response may resolve to.
// The analyst is reachable only through the persona API.
var RoutableAgents = []AgentID{AgentDirector, AgentResearcher, AgentWriter, AgentEditor}

// IsRoutable reports whether id is a valid router output.
func IsRoutable(id AgentID) bool {
	for _, a := range RoutableAgents {
		if a == id {
			return true
		}
	}
	return false
}
