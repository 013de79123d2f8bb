// Package registry loads the reference dataset of churches.
package registry

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// LoadEntitiesFromFile reads a JSON array of model.Entity from the given
// path. A missing or unreadable file is an error; the dataset is required
// for every run.
func LoadEntitiesFromFile(path string) ([]model.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read churches %s", path)
	}

	var entities []model.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, eris.Wrapf(err, "registry: unmarshal churches %s", path)
	}

	seen := make(map[string]bool, len(entities))
	withEndpoint := 0
	for i, e := range entities {
		// Endpoints are dedup keys for resolution and download.
		entities[i].Endpoint = strings.TrimSpace(e.Endpoint)

		if e.ID != "" {
			if seen[e.ID] {
				return nil, eris.Errorf("registry: duplicate church id %q", e.ID)
			}
			seen[e.ID] = true
		} else {
			zap.L().Warn("registry: church without id", zap.String("name", e.Name))
		}
		if e.HasEndpoint() {
			withEndpoint++
		}
	}

	zap.L().Info("registry: loaded churches",
		zap.String("path", path),
		zap.Int("churches", len(entities)),
		zap.Int("with_bulletin", withEndpoint),
		zap.Int("bulletin_sites", len(DistinctEndpoints(entities))),
	)
	return entities, nil
}

// DistinctEndpoints returns the usable endpoints referenced by entities in
// first-appearance order.
func DistinctEndpoints(entities []model.Entity) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entities {
		if !e.HasEndpoint() || seen[e.Endpoint] {
			continue
		}
		seen[e.Endpoint] = true
		out = append(out, e.Endpoint)
	}
	return out
}
