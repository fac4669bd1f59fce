package database

import (
	"fmt"

	"github.com/mediagen/backend/internal/config"
	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/pkg/logger"
	"github.com/mediagen/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.AdminLink{},
		&models.Session{},
		&models.Quota{},
		&models.UserTag{},
		&models.MediaRecord{},
		&models.GenerationJob{},
		&models.AuditLog{},
	)
}

// SeedAdmin makes sure the admin account configured in the environment
// exists and can log in with the configured password. It is idempotent and
// runs on every startup: changing ADMIN_PASSWORD in the environment updates
// the stored hash on the next boot.
func SeedAdmin(db *gorm.DB, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}

	var existing models.User
	err := db.First(&existing, "email = ?", cfg.Email).Error
	if err == gorm.ErrRecordNotFound {
		hash, hashErr := utils.HashPassword(cfg.Password)
		if hashErr != nil {
			return hashErr
		}
		admin := models.User{
			Email:        cfg.Email,
			PasswordHash: &hash,
			Role:         models.UserRoleAdmin,
			IsActive:     true,
		}
		if err := db.Create(&admin).Error; err != nil {
			return err
		}
		logger.Info("admin_seeded", map[string]interface{}{"email": cfg.Email})
		return nil
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"role":                   models.UserRoleAdmin,
		"is_active":              true,
		"require_password_reset": false,
	}
	if !existing.HasPassword() || !utils.CheckPassword(cfg.Password, *existing.PasswordHash) {
		hash, hashErr := utils.HashPassword(cfg.Password)
		if hashErr != nil {
			return hashErr
		}
		updates["password_hash"] = hash
	}

	return db.Model(&models.User{}).Where("id = ?", existing.ID).Updates(updates).Error
}
