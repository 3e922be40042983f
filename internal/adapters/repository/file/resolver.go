package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"drunc.client/internal/core/domain"
	"gopkg.in/yaml.v3"
)

type document struct {
	Sessions []*domain.SessionTree `yaml:"sessions"`
}

// Resolver reads segment databases stored as YAML files.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve loads reference (a path or file: URL) and returns the tree for session.
func (r *Resolver) Resolve(ctx context.Context, reference, session string) (*domain.SessionTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(reference, "file://")
	path = strings.TrimPrefix(path, "file:")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segment database: %w", err)
	}
	return parse(data, session)
}

func parse(data []byte, session string) (*domain.SessionTree, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse segment database: %w", err)
	}
	for _, s := range doc.Sessions {
		if s == nil || s.Name != session {
			continue
		}
		if s.Segment == nil {
			return nil, fmt.Errorf("session %s has no segment", session)
		}
		return s, nil
	}
	return nil, fmt.Errorf("session %s not found in segment database", session)
}
