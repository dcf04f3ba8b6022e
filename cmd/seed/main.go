package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pharmcatalog/internal/auth"
	"pharmcatalog/internal/config"
	"pharmcatalog/internal/db"
	"pharmcatalog/internal/logger"
	"pharmcatalog/internal/model"
	"pharmcatalog/internal/repository"
	"pharmcatalog/internal/service"
)

// sampleDrugs is written only into an empty catalog.
var sampleDrugs = []struct {
	name, price, kind, dosage, manufacturer string
}{
	{"Aspirin", "3.50", "tablet", "500 mg", "Bayer"},
	{"Ibuprofen", "5.20", "tablet", "200 mg", "Advil"},
	{"Amoxicillin", "12.00", "capsule", "250 mg", "Sandoz"},
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("starting seed")

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN, db.NewLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx := context.Background()
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	userRepo := repository.NewUserRepository(gormDB)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal().Msg("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}
	created, err := ensureAdmin(ctx, userRepo, hasher, email, password, os.Getenv("ADMIN_NAME"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin")
	}
	log.Info().Str("email", service.NormalizeEmail(email)).Bool("created", created).Msg("admin account ready")

	if strings.EqualFold(os.Getenv("SEED_SAMPLE_DRUGS"), "true") {
		n, err := seedSampleDrugs(ctx, repository.NewDrugRepository(gormDB), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed drugs")
		}
		log.Info().Int("drugs", n).Msg("sample catalog seeded")
	}
}

// ensureAdmin creates the admin account or, when the email exists, promotes
// it to ADMIN and resets its password. It reports whether a row was created.
func ensureAdmin(ctx context.Context, repo repository.UserRepository, hasher *auth.PasswordHasher, email, password, name string) (bool, error) {
	email = service.NormalizeEmail(email)
	hash, err := hasher.Hash(password)
	if err != nil {
		return false, err
	}

	existing, err := repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("error checking user %s: %w", email, err)
	}

	if existing != nil {
		existing.Role = model.RoleAdmin
		existing.PasswordHash = hash
		if name != "" {
			existing.Name = &name
		}
		if err := repo.Save(ctx, existing); err != nil {
			return false, fmt.Errorf("error updating user %s: %w", email, err)
		}
		return false, nil
	}

	user := &model.User{Email: email, PasswordHash: hash, Role: model.RoleAdmin}
	if name != "" {
		user.Name = &name
	}
	if err := repo.Create(ctx, user); err != nil {
		return false, fmt.Errorf("error creating user %s: %w", email, err)
	}
	return true, nil
}

// seedSampleDrugs fills an empty catalog and returns how many drugs it wrote.
func seedSampleDrugs(ctx context.Context, repo repository.DrugRepository, log zerolog.Logger) (int, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		log.Info().Int("existing", len(existing)).Msg("catalog not empty, skipping sample drugs")
		return 0, nil
	}

	for i, s := range sampleDrugs {
		drug := &model.Drug{
			Name:         s.name,
			Price:        decimal.NewNullDecimal(decimal.RequireFromString(s.price)),
			Type:         &sampleDrugs[i].kind,
			Dosage:       &sampleDrugs[i].dosage,
			Manufacturer: &sampleDrugs[i].manufacturer,
			Images:       []string{},
		}
		if err := repo.Create(ctx, drug); err != nil {
			return i, fmt.Errorf("error creating drug %s: %w", s.name, err)
		}
	}
	return len(sampleDrugs), nil
}
