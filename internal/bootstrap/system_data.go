package bootstrap

import (
	"context"
	"log"
	"os"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/internal/infrastructure/database"
	"github.com/stagedoor/backend/internal/infrastructure/persistence"
	"github.com/stagedoor/backend/pkg/auth"
	"github.com/stagedoor/backend/pkg/utils"
)

const (
	defaultAdminEmail    = "admin@stagedoor.local"
	defaultAdminPassword = "ChangeMe123!"
)

// InitializeSystemData seeds a staff account so a fresh install is usable.
// ADMIN_EMAIL / ADMIN_PASSWORD override the defaults.
func InitializeSystemData(db *database.Connection) error {
	users := persistence.NewUserRepository(db.DB())
	ctx := context.Background()

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = defaultAdminEmail
	}

	existing, err := users.FindByEmail(ctx, nil, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
		log.Println("⚠️  Seeding admin with the default password, change it after first login")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &models.User{
		ID:           utils.GenerateID(),
		Name:         "Event Admin",
		Email:        email,
		PasswordHash: hash,
		IsStaff:      true,
	}
	if err := users.Insert(ctx, nil, admin); err != nil {
		return err
	}

	log.Printf("👤 Seeded staff account %s", email)
	return nil
}
