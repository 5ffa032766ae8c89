package dump

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/sirupsen/logrus"

	apperrors "github.com/reillywatson/impact/internal/errors"
	"github.com/reillywatson/impact/internal/model"
)

// Adapter turns one provider's dump into a canonical bundle.
type Adapter interface {
	Provider() string
	Parse(dir string, m *Manifest) (*model.Bundle, error)
}

// Registry maps provider names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Provider()] = a
}

// Lookup returns the adapter for provider or an adapter error.
func (r *Registry) Lookup(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, apperrors.NewAdapterError(provider, "unsupported provider")
	}
	return a, nil
}

func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry knows every built-in provider.
func DefaultRegistry(logger logrus.FieldLogger) *Registry {
	return NewRegistry(NewGitHubAdapter(logger))
}

const maxLineSize = 64 * 1024 * 1024

// readJSONL decodes each non-blank line of path into a fresh T and hands it to
// fn. A missing file is treated as empty.
func readJSONL[T any](path string, fn func(rec *T) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		rec := new(T)
		if err := json.Unmarshal(data, rec); err != nil {
			return apperrors.NewParseError(path, line, "invalid JSON").WithCause(err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return apperrors.NewParseError(path, line+1, "failed to read line").WithCause(err)
	}
	return nil
}
