package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	customerrors "github.com/axellelanca/shortlink/internal/errors"
	"github.com/axellelanca/shortlink/internal/models"
)

// pgUniqueViolation is the SQLSTATE PostgreSQL reports for a unique index conflict.
const pgUniqueViolation = "23505"

// LinkRepository est une interface qui définit les méthodes d'accès aux données
type LinkRepository interface {
	CreateLink(ctx context.Context, link *models.Link) error
	GetLinkByShortCode(ctx context.Context, code string) (*models.Link, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	RecordClick(ctx context.Context, code string, at time.Time) (*models.Link, error)
	ListLinks(ctx context.Context, offset, limit int) ([]models.Link, error)
	CountLinks(ctx context.Context) (int64, error)
	DeleteLinkByShortCode(ctx context.Context, code string) (*models.Link, error)
	Ping(ctx context.Context) error
}

// GormLinkRepository est l'implémentation de LinkRepository utilisant GORM.
type GormLinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository crée et retourne une nouvelle instance de GormLinkRepository.
func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

var _ LinkRepository = (*GormLinkRepository)(nil)

// CreateLink insère un nouveau lien dans la base de données.
// A unique-index violation on code is reported as ErrShortCodeTaken; this is
// the authoritative duplicate signal, whatever the callers checked before.
func (r *GormLinkRepository) CreateLink(ctx context.Context, link *models.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return translateError("create link", err)
	}
	return nil
}

// GetLinkByShortCode récupère un lien de la base de données en utilisant son code.
func (r *GormLinkRepository) GetLinkByShortCode(ctx context.Context, code string) (*models.Link, error) {
	var link models.Link
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		return nil, translateError("get link", err)
	}
	return &link, nil
}

func (r *GormLinkRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Link{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, translateError("check code", err)
	}
	return count > 0, nil
}

// RecordClick increments total_clicks and stamps last_clicked in one
// transaction, then reads the row back inside that same transaction. The
// increment is evaluated by the database so concurrent clicks never overwrite
// each other.
func (r *GormLinkRepository) RecordClick(ctx context.Context, code string, at time.Time) (*models.Link, error) {
	var link models.Link
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Link{}).
			Where("code = ?", code).
			Updates(map[string]interface{}{
				"total_clicks": gorm.Expr("total_clicks + ?", 1),
				"last_clicked": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return customerrors.ErrShortCodeNotFound
		}
		return tx.Where("code = ?", code).First(&link).Error
	})
	if err != nil {
		return nil, translateError("record click", err)
	}
	return &link, nil
}

// ListLinks returns one window of links, newest first.
func (r *GormLinkRepository) ListLinks(ctx context.Context, offset, limit int) ([]models.Link, error) {
	links := make([]models.Link, 0, limit)
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, translateError("list links", err)
	}
	return links, nil
}

func (r *GormLinkRepository) CountLinks(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Link{}).Count(&count).Error; err != nil {
		return 0, translateError("count links", err)
	}
	return count, nil
}

// DeleteLinkByShortCode removes the link and returns the row as it was just
// before deletion.
func (r *GormLinkRepository) DeleteLinkByShortCode(ctx context.Context, code string) (*models.Link, error) {
	var link models.Link
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&link).Error; err != nil {
			return err
		}
		res := tx.Where("code = ?", code).Delete(&models.Link{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Deleted concurrently between the read and the delete.
			return customerrors.ErrShortCodeNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translateError("delete link", err)
	}
	return &link, nil
}

// Ping checks that the database answers.
func (r *GormLinkRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return translateError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return translateError("ping", err)
	}
	return nil
}

// translateError maps driver and gorm errors onto the application error kinds.
func translateError(op string, err error) error {
	switch {
	case errors.Is(err, customerrors.ErrShortCodeNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return customerrors.ErrShortCodeNotFound
	case isUniqueViolation(err):
		return customerrors.ErrShortCodeTaken
	case isTransient(err):
		return customerrors.Unavailable(fmt.Errorf("failed to %s: %w", op, err))
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// SQLite and libSQL only expose the constraint failure in the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed")
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "connection refused")
}
