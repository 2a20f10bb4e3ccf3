// Package auth authenticates callers of the control-plane RPC (spec §4.K):
// a signed JWT for interactive/paired sessions, or a static API key for
// automation. Channel end-user access control (dm_policy) lives in
// internal/channelrunner and is a separate concern.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nexuscore/agentrt/pkg/models"
)

var (
	ErrAuthDisabled = errors.New("auth disabled")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid api key")
)

// Config configures the auth Service from static configuration.
type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
	APIKeys     []APIKeyConfig
}

// APIKeyConfig declares a static API key and the principal it authenticates as.
type APIKeyConfig struct {
	Key    string `yaml:"key"`
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
	Name   string `yaml:"name"`
}

// Service validates JWTs and API keys into models.Principal.
type Service struct {
	mu      sync.RWMutex
	jwt     *JWTService
	apiKeys map[string]*models.Principal
}

func NewService(cfg Config) *Service {
	service := &Service{}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		service.jwt = NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	}
	service.apiKeys = buildAPIKeyMap(cfg.APIKeys)
	return service
}

// Enabled reports whether any auth check should run. A nil Service (or one
// configured with neither a JWT secret nor API keys) disables auth so the
// control-plane interceptors pass every call through.
func (s *Service) Enabled() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jwt != nil || len(s.apiKeys) > 0
}

func (s *Service) GenerateJWT(p *models.Principal) (string, error) {
	if s == nil {
		return "", ErrAuthDisabled
	}
	s.mu.RLock()
	jwtSvc := s.jwt
	s.mu.RUnlock()
	if jwtSvc == nil {
		return "", ErrAuthDisabled
	}
	return jwtSvc.Generate(p)
}

func (s *Service) ValidateJWT(token string) (*models.Principal, error) {
	if s == nil {
		return nil, ErrAuthDisabled
	}
	s.mu.RLock()
	jwtSvc := s.jwt
	s.mu.RUnlock()
	if jwtSvc == nil {
		return nil, ErrAuthDisabled
	}
	return jwtSvc.Validate(token)
}

// ValidateAPIKey validates an API key in constant time (to avoid leaking
// which prefix matched via timing) and returns the associated principal.
func (s *Service) ValidateAPIKey(key string) (*models.Principal, error) {
	if s == nil {
		return nil, ErrAuthDisabled
	}
	s.mu.RLock()
	apiKeys := s.apiKeys
	s.mu.RUnlock()

	if len(apiKeys) == 0 {
		return nil, ErrAuthDisabled
	}
	inputKey := strings.TrimSpace(key)
	var matched *models.Principal
	for storedKey, principal := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(inputKey), []byte(storedKey)) == 1 {
			matched = principal
		}
	}
	if matched == nil {
		return nil, ErrInvalidKey
	}
	return matched, nil
}

func buildAPIKeyMap(keys []APIKeyConfig) map[string]*models.Principal {
	out := map[string]*models.Principal{}
	for _, entry := range keys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			continue
		}
		userID := strings.TrimSpace(entry.UserID)
		if userID == "" {
			sum := sha256.Sum256([]byte(key))
			userID = "api_" + hex.EncodeToString(sum[:8])
		}
		out[key] = &models.Principal{
			ID:    userID,
			Email: strings.TrimSpace(entry.Email),
			Name:  strings.TrimSpace(entry.Name),
		}
	}
	return out
}
