package dump

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/reillywatson/impact/internal/errors"
)

const (
	ManifestFile = "dump_manifest.json"
	CanonicalDir = "canonical"

	// APIVersion is the GitHub REST API version recorded for live fetches.
	APIVersion = "2022-11-28"
)

// Manifest describes a dump: who it is about, which provider produced it and
// the window it covers.
type Manifest struct {
	Provider     string     `json:"provider" validate:"required"`
	APIVersion   string     `json:"api_version,omitempty"`
	User         string     `json:"user" validate:"required"`
	From         *time.Time `json:"from,omitempty"`
	To           *time.Time `json:"to,omitempty"`
	Repositories []string   `json:"repositories,omitempty" validate:"dive,contains=/"`
	GeneratedAt  *time.Time `json:"generated_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// InWindow reports whether t lies in [From, To]; a missing bound is open.
func (m *Manifest) InWindow(t time.Time) bool {
	if m.From != nil && t.Before(*m.From) {
		return false
	}
	if m.To != nil && t.After(*m.To) {
		return false
	}
	return true
}

// ReadManifest loads and validates dir's manifest.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewManifestError(path, "manifest file not found")
		}
		return nil, apperrors.NewManifestError(path, "failed to read manifest").WithCause(err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewManifestError(path, "invalid JSON in manifest file").WithCause(err)
	}

	if err := validator.New().Struct(&m); err != nil {
		return nil, apperrors.NewManifestError(path, fmt.Sprintf("invalid manifest: %v", err)).WithCause(err)
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
