package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// identitySeedFile lists identities to preload, e.g.
//
//	identities:
//	  - id: a1
//	    name: Ann
//	    email: ann@example.com
//	    role: agent
type identitySeedFile struct {
	Identities []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
		Role  string `yaml:"role"`
	} `yaml:"identities"`
}

// LoadIdentitySeed reads IdentityFile. An empty path yields no identities.
func (s SeedConfig) LoadIdentitySeed() ([]domain.Identity, error) {
	if s.IdentityFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(s.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("read identity seed: %w", err)
	}
	return parseIdentitySeed(raw)
}

func parseIdentitySeed(raw []byte) ([]domain.Identity, error) {
	var file identitySeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse identity seed: %w", err)
	}
	out := make([]domain.Identity, 0, len(file.Identities))
	for i, entry := range file.Identities {
		role := domain.Role(strings.ToLower(strings.TrimSpace(entry.Role)))
		if !role.Valid() {
			return nil, fmt.Errorf("identity seed #%d: unknown role %q", i, entry.Role)
		}
		email := strings.TrimSpace(entry.Email)
		if entry.ID == "" || email == "" {
			return nil, fmt.Errorf("identity seed #%d: id and email are required", i)
		}
		out = append(out, domain.Identity{ID: entry.ID, Name: entry.Name, Email: email, Role: role})
	}
	return out, nil
}
