package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// StaticVerifier resolves tokens from an in-memory table, loaded from a
// YAML file of the form:
//
//	tokens:
//	  dev-token-alice:
//	    userId: alice
//	    email: alice@example.com
//	    roles: [admin]
//	    teamIds: [team-codeops]
//	    teamRoles:
//	      team-codeops: owner
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]*Principal
}

type tokenFile struct {
	Tokens map[string]*Principal `yaml:"tokens"`
}

// NewStaticVerifier builds a verifier over a fixed token table.
func NewStaticVerifier(tokens map[string]*Principal) *StaticVerifier {
	if tokens == nil {
		tokens = make(map[string]*Principal)
	}
	return &StaticVerifier{tokens: tokens}
}

// LoadStaticVerifier reads the token table from a YAML file.
func LoadStaticVerifier(path string) (*StaticVerifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	return NewStaticVerifier(tf.Tokens), nil
}

// Verify resolves the token or fails with a generic invalid-token error.
func (v *StaticVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	p, exists := v.tokens[token]
	if !exists {
		return nil, fmt.Errorf("invalid token")
	}
	return p, nil
}

// AddToken registers (or replaces) a token at runtime.
func (v *StaticVerifier) AddToken(token string, p *Principal) {
	v.mu.Lock()
	v.tokens[token] = p
	v.mu.Unlock()
}

// RevokeToken removes a token.
func (v *StaticVerifier) RevokeToken(token string) {
	v.mu.Lock()
	delete(v.tokens, token)
	v.mu.Unlock()
}
