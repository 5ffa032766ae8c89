package dump

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/reillywatson/impact/internal/model"
)

// Ingester loads dump directories through a provider registry.
type Ingester struct {
	registry *Registry
	logger   logrus.FieldLogger
}

func NewIngester(registry *Registry, logger logrus.FieldLogger) *Ingester {
	return &Ingester{registry: registry, logger: logger}
}

// Ingest reads dir's manifest, dispatches to the matching adapter and returns
// the resulting bundle along with the manifest.
func (i *Ingester) Ingest(dir string) (*model.Bundle, *Manifest, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}

	adapter, err := i.registry.Lookup(m.Provider)
	if err != nil {
		return nil, nil, err
	}

	log := i.logger.WithFields(logrus.Fields{"path": dir, "provider": m.Provider})
	log.Info("Ingesting dump")

	bundle, err := adapter.Parse(dir, m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s dump: %w", m.Provider, err)
	}

	log.WithFields(logrus.Fields{
		"users":         len(bundle.Users),
		"repositories":  len(bundle.Repositories),
		"pull_requests": len(bundle.PullRequests),
		"commits":       len(bundle.Commits),
		"reviews":       len(bundle.Reviews),
		"comments":      len(bundle.Comments),
		"files":         len(bundle.Files),
		"timeline":      len(bundle.Timeline),
	}).Info("Ingested dump")
	return bundle, m, nil
}
