package agent

import (
	"regexp"
	"strings"
)

// ModelRule is a per-specialty routing rule (spec §4.H "Model resolution").
type ModelRule struct {
	Specialty string
	Model     string
}

// ResolveModel applies the spec's precedence: per-agent override > per-
// specialty routing rule > session model > engine default.
func ResolveModel(agentOverride, specialty string, rules []ModelRule, sessionModel, engineDefault string) string {
	if agentOverride != "" {
		return agentOverride
	}
	for _, r := range rules {
		if r.Specialty == specialty {
			return r.Model
		}
	}
	if sessionModel != "" {
		return sessionModel
	}
	return engineDefault
}

var openAIModelPrefix = regexp.MustCompile(`^(gpt|o[1-4])`)

// ProviderKind infers the provider name from a model string's prefix (spec
// §4.H): "claude*" -> anthropic, "gemini*" -> google, "gpt|o[1-4]*" ->
// openai, "*/*" -> openrouter, "*:*" -> ollama, else the given default.
func ProviderKind(model, defaultProvider string) string {
	switch {
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gemini"):
		return "google"
	case openAIModelPrefix.MatchString(model):
		return "openai"
	case strings.Contains(model, "/"):
		return "openrouter"
	case strings.Contains(model, ":"):
		return "ollama"
	default:
		return defaultProvider
	}
}
