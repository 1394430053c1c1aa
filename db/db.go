package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pulse/config"
	"pulse/models"
)

// InitDB opens the Postgres connection and configures the pool.
func InitDB(cfg config.DBConfig, log zerolog.Logger) (*gorm.DB, error) {
	log.Info().Str("host", cfg.Host).Str("port", cfg.Port).Msg("connecting to PostgreSQL")

	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	conn, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().Msg("connected to PostgreSQL")
	return conn, nil
}

// Postgres implements every store on top of gorm.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres migrates the schema and returns the store.
func NewPostgres(conn *gorm.DB) (*Postgres, error) {
	if err := conn.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector: %w", err)
	}

	if err := conn.AutoMigrate(
		&models.Feedback{},
		&models.Annotation{},
		&models.Cluster{},
		&models.ClusterMembership{},
		&models.Insight{},
		&models.Requirement{},
		&models.RequirementFeedback{},
		&models.ABTest{},
		&models.ABTestAssignment{},
		&models.FeedbackEmbedding{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Postgres{db: conn}, nil
}

// exists returns ErrNotFound unless a row of model with the given id exists.
func (p *Postgres) exists(ctx context.Context, model any, id uint) error {
	var n int64
	if err := p.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
