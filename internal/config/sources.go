// Package config loads file-based configuration that does not fit in
// environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

// SourcesSeed lists sources to upsert at startup.
type SourcesSeed struct {
	Sources []SourceSeed `yaml:"sources"`
}

// SourceSeed is one seeded source. Status is "active" (default) or "disabled".
type SourceSeed struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Cover  string `yaml:"cover"`
	Intro  string `yaml:"intro"`
	Status string `yaml:"status"`
}

// LoadSourcesSeed reads a YAML seed file. ${VAR} references are expanded
// from the environment before parsing.
func LoadSourcesSeed(path string) (*SourcesSeed, error) {
	// #nosec G304 -- path comes from SOURCES_SEED_FILE, set by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSourcesSeed([]byte(os.ExpandEnv(string(data))))
}

// ParseSourcesSeed parses and validates seed YAML.
func ParseSourcesSeed(data []byte) (*SourcesSeed, error) {
	var seed SourcesSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, fmt.Errorf("seed validation failed: %w", err)
	}
	return &seed, nil
}

func (s *SourcesSeed) validate() error {
	seen := make(map[string]struct{}, len(s.Sources))
	var errs []error
	for i, src := range s.Sources {
		if _, ok := seen[src.ID]; ok && src.ID != "" {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID))
			continue
		}
		seen[src.ID] = struct{}{}

		if _, err := src.status(); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
			continue
		}
		create := src.Create()
		if err := create.Normalize().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (s SourceSeed) status() (entity.SourceStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "", "active":
		return entity.SourceActive, nil
	case "disabled":
		return entity.SourceDisabled, nil
	default:
		return 0, fmt.Errorf("status must be active or disabled, got %q", s.Status)
	}
}

// Create converts the seed entry to a create payload.
func (s SourceSeed) Create() repository.SourceCreate {
	status, _ := s.status()
	return repository.SourceCreate{
		ID:            s.ID,
		Name:          s.Name,
		CoverImageURL: s.Cover,
		Description:   s.Intro,
		Status:        &status,
	}
}

// Update returns the descriptive fields a seed entry may overwrite on an
// existing source. Sync times and the history flag stay untouched.
func (s SourceSeed) Update() repository.SourceUpdate {
	create := s.Create()
	return repository.SourceUpdate{
		Name:          &create.Name,
		CoverImageURL: &create.CoverImageURL,
		Description:   &create.Description,
		Status:        create.Status,
	}
}

// Apply creates missing seeded sources and refreshes the descriptive fields
// of existing ones. It returns the number of sources created.
func (s *SourcesSeed) Apply(ctx context.Context, repo repository.SourceRepository) (int, error) {
	created := 0
	for _, src := range s.Sources {
		_, err := repo.GetSource(ctx, src.ID)
		switch {
		case errors.Is(err, entity.ErrNotFound):
			if _, err := repo.CreateSource(ctx, src.Create()); err != nil {
				return created, fmt.Errorf("seed source %s: %w", src.ID, err)
			}
			created++
		case err != nil:
			return created, fmt.Errorf("seed source %s: %w", src.ID, err)
		default:
			if _, err := repo.UpdateSource(ctx, src.ID, src.Update()); err != nil {
				return created, fmt.Errorf("seed source %s: %w", src.ID, err)
			}
		}
	}
	return created, nil
}
