package utils

import (
	"context"
	"fmt"
	"os"

	"votematch/logger"
	"votematch/models"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CatalogStore is the part of the repository the seeder writes to
type CatalogStore interface {
	CountOpinions(ctx context.Context) (int64, error)
	SaveCatalog(ctx context.Context, catalog models.Catalog) error
}

// LoadCatalog reads and validates a YAML catalog file
func LoadCatalog(path string) (models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Catalog{}, fmt.Errorf("failed to read catalog: %w", err)
	}
	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return models.Catalog{}, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	if err := ValidateCatalog(catalog); err != nil {
		return models.Catalog{}, err
	}
	return catalog, nil
}

// ValidateCatalog checks field constraints, id uniqueness and that every
// opinion points at a known topic and, when set, a known candidate.
func ValidateCatalog(catalog models.Catalog) error {
	if err := validator.New().Struct(catalog); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	topics := make(map[int64]bool, len(catalog.Topics))
	for _, t := range catalog.Topics {
		if topics[t.ID] {
			return fmt.Errorf("invalid catalog: duplicate topic id %d", t.ID)
		}
		topics[t.ID] = true
	}
	candidates := make(map[int64]bool, len(catalog.Candidates))
	for _, c := range catalog.Candidates {
		if candidates[c.ID] {
			return fmt.Errorf("invalid catalog: duplicate candidate id %d", c.ID)
		}
		candidates[c.ID] = true
	}
	opinions := make(map[int64]bool, len(catalog.Opinions))
	for _, op := range catalog.Opinions {
		if opinions[op.ID] {
			return fmt.Errorf("invalid catalog: duplicate opinion id %d", op.ID)
		}
		opinions[op.ID] = true
		if !topics[op.TopicID] {
			return fmt.Errorf("invalid catalog: opinion %d references unknown topic %d", op.ID, op.TopicID)
		}
		if op.CandidateID != 0 && !candidates[op.CandidateID] {
			return fmt.Errorf("invalid catalog: opinion %d references unknown candidate %d", op.ID, op.CandidateID)
		}
	}
	return nil
}

// PopulateCatalog loads the catalog file into an empty store. A store that
// already holds opinions is left alone.
func PopulateCatalog(ctx context.Context, store CatalogStore, path string, log *logger.Logger) error {
	count, err := store.CountOpinions(ctx)
	if err != nil {
		return fmt.Errorf("failed to count opinions: %w", err)
	}
	if count > 0 {
		log.Debug("catalog already present, skipping seed", "opinions", count)
		return nil
	}
	if path == "" {
		log.Warn("no catalog configured and store is empty")
		return nil
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		return err
	}
	if err := store.SaveCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	log.Info("catalog seeded",
		"topics", len(catalog.Topics),
		"candidates", len(catalog.Candidates),
		"opinions", len(catalog.Opinions))
	return nil
}
