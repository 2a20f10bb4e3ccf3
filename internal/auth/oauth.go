package auth

import (
	"context"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// OAuthConfig configures a client-credentials token source the CLI uses to
// authenticate to a remote control-plane server (spec §4.K), as an
// alternative to a static API key for automation callers that already run
// an OAuth-capable identity provider.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// Enabled reports whether enough fields are set to attempt a token fetch.
func (c OAuthConfig) Enabled() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != "" && strings.TrimSpace(c.TokenURL) != ""
}

// TokenSource builds the client-credentials flow config for cfg. Each
// Token() call on it fetches a new token; nothing is cached.
func (c OAuthConfig) TokenSource(ctx context.Context) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: strings.TrimSpace(c.ClientSecret),
		TokenURL:     strings.TrimSpace(c.TokenURL),
		Scopes:       c.Scopes,
	}
}

// BearerToken fetches a fresh access token and returns the literal
// "Bearer <token>" header value for a one-shot grpc.WithPerRPCCredentials
// style call, as cmd/nexuscore's remote status/approvals/mcp commands use.
func (c OAuthConfig) BearerToken(ctx context.Context) (string, error) {
	token, err := c.TokenSource(ctx).Token(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token.AccessToken, nil
}
