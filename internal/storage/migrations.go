package storage

import (
	"context"
	"fmt"
	"time"

	"grievance/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migration is one idempotent schema step. Applied versions are recorded in schema_migrations.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// SchemaMigration is a row of schema_migrations.
type SchemaMigration struct {
	Version   int `gorm:"primaryKey;autoIncrement:false"`
	Name      string
	AppliedAt time.Time
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// Migrations is the ordered list applied by Migrate.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Department{},
				&models.User{},
				&models.Admin{},
				&models.Grievance{},
				&models.StatusHistory{},
			)
		},
	},
	{
		Version: 2,
		Name:    "seed_departments",
		Up:      seedDepartments,
	},
	{
		Version: 3,
		Name:    "add_resolution_note",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasColumn(&models.Grievance{}, "ResolutionNote") {
				return nil
			}
			return tx.Migrator().AddColumn(&models.Grievance{}, "ResolutionNote")
		},
	},
	{
		Version: 4,
		Name:    "backfill_initial_history",
		Up:      backfillInitialHistory,
	},
}

// Migrate застосовує всі ще не застосовані міграції, кожну у власній транзакції.
func Migrate(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []SchemaMigration
	if err := db.Find(&applied).Error; err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	for _, m := range Migrations {
		if done[m.Version] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Version: m.Version, Name: m.Name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		log.Info("Applied migration", zap.Int("version", m.Version), zap.String("name", m.Name))
	}
	return nil
}

// SeedDepartments inserts missing catalog departments. Existing rows are left untouched.
func SeedDepartments(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(seedDepartments)
}

func seedDepartments(tx *gorm.DB) error {
	for _, d := range models.DepartmentCatalog {
		dept := d
		if err := tx.Where(models.Department{Name: dept.Name}).
			Attrs(models.Department{Description: dept.Description}).
			FirstOrCreate(&dept).Error; err != nil {
			return fmt.Errorf("seed %s: %w", d.Name, err)
		}
	}
	return nil
}

func backfillInitialHistory(tx *gorm.DB) error {
	var orphans []models.Grievance
	err := tx.Where("NOT EXISTS (SELECT 1 FROM status_history h WHERE h.grievance_id = grievances.grievance_id)").
		Find(&orphans).Error
	if err != nil {
		return err
	}
	for _, g := range orphans {
		entry := models.StatusHistory{
			GrievanceID: g.GrievanceID,
			NewStatus:   g.Status,
			Note:        initialHistoryNote,
			ActorKind:   models.ActorSystem,
			CreatedAt:   g.CreatedAt,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}
