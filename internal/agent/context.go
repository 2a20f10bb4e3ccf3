package agent

import "context"

type agentIDKey struct{}

// WithAgentID attaches the acting agent's id to ctx so agent-scoped
// builtins (soul, memory, skill storage, messaging) can identify the
// caller without threading it through every Tool.Execute signature.
// Dispatcher.Execute sets this before invoking a tool.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentIDKey{}, agentID)
}

// AgentIDFromContext retrieves the agent id set by WithAgentID.
func AgentIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(agentIDKey{}).(string)
	return v, ok && v != ""
}

type loadedToolsKey struct{}

// WithLoadedTools attaches the current request's loaded_tools set (spec
// §4.D) to ctx. The map is shared by reference for the life of one
// Loop.Run call: request_tools mutates it in place so later rounds of the
// same run see newly surfaced tools without the loop threading the set
// through every Tool.Execute signature.
func WithLoadedTools(ctx context.Context, loaded map[string]bool) context.Context {
	return context.WithValue(ctx, loadedToolsKey{}, loaded)
}

// LoadedToolsFromContext retrieves the set stored by WithLoadedTools.
func LoadedToolsFromContext(ctx context.Context) (map[string]bool, bool) {
	v, ok := ctx.Value(loadedToolsKey{}).(map[string]bool)
	return v, ok && v != nil
}
