package cmd

import (
	"context"
	"fmt"
	"os"

	"meetup-backend/internal/config"
	"meetup-backend/internal/models"
	"meetup-backend/internal/services"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// seedFile is the layout of a places seed file
type seedFile struct {
	Places []*models.Place `yaml:"places"`
}

// ReadSeed parses a YAML seed file
func ReadSeed(path string) ([]*models.Place, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return f.Places, nil
}

// SeedPlaces stores all places in one write. A bad entry or a failed
// insert leaves the store untouched.
func SeedPlaces(ctx context.Context, svc *services.PlaceService, places []*models.Place) error {
	if err := svc.CreateMany(ctx, places); err != nil {
		return err
	}
	for _, p := range places {
		log.Info().Str("place_id", p.ID).Str("title", p.Title).Msg("Place seeded")
	}
	return nil
}

// RunSeed loads places from a YAML file into the configured store
func RunSeed(configPath, seedPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Log.Level)

	places, err := ReadSeed(seedPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.close()

	svc := services.NewPlaceService(st.places, nil, 0)
	if err := SeedPlaces(ctx, svc, places); err != nil {
		return fmt.Errorf("failed to seed places: %w", err)
	}
	log.Info().Int("count", len(places)).Msg("Seeding complete")
	return nil
}
