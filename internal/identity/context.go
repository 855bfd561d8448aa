// Package identity carries the acting agent through request contexts.
package identity

import "context"

type ctxKey string

const agentKey ctxKey = "echannel.agent"

// Roles recognised in agent tokens.
const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// Agent is the authenticated user acting on behalf of a patient.
type Agent struct {
	ID   string
	Role string
}

// IsAdmin reports whether the agent may run administrative operations.
func (a Agent) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// WithAgent stores the agent in context.
func WithAgent(ctx context.Context, agent Agent) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

// AgentFromContext extracts the agent if one authenticated. Guests have none.
func AgentFromContext(ctx context.Context) (Agent, bool) {
	agent, ok := ctx.Value(agentKey).(Agent)
	return agent, ok && agent.ID != ""
}

// AgentID is the acting user id, or "" for guests.
func AgentID(ctx context.Context) string {
	agent, _ := AgentFromContext(ctx)
	return agent.ID
}
