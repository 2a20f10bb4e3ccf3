package orchestrator

import "context"

type projectIDKey struct{}

// WithProjectID attaches the active project id to ctx so the boss/worker
// control tools (project_complete, report_progress, check_agent_status) can
// find their project without threading it through every call signature.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectIDKey{}, projectID)
}

// ProjectIDFromContext retrieves the project id set by WithProjectID.
func ProjectIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(projectIDKey{}).(string)
	return v, ok
}
