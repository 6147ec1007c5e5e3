package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/axellelanca/shortlink/cmd"
	"github.com/axellelanca/shortlink/internal/database"
	customerrors "github.com/axellelanca/shortlink/internal/errors"
	"github.com/axellelanca/shortlink/internal/logger"
	"github.com/axellelanca/shortlink/internal/repository"
	"github.com/axellelanca/shortlink/internal/services"
)

// openLinkService opens the configured database and returns a LinkService
// plus the function that releases the connection pool. The schema is
// migrated first so commands work against a fresh database file.
func openLinkService(ctx context.Context) (*services.LinkService, func(), error) {
	cfg := cmd.Cfg
	db, err := database.Open(ctx, cfg.Database, logger.NewGormLogger(cfg.Log.GormLevel, cfg.Log.SlowQueryThreshold))
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = database.Close(db) }

	if err := database.Migrate(db); err != nil {
		closeDB()
		return nil, nil, err
	}

	linkRepo := repository.NewLinkRepository(db)
	return services.NewLinkService(linkRepo, cfg.Database.QueryTimeout), closeDB, nil
}

// describe turns an application error into a message for the terminal.
func describe(code string, err error) error {
	switch {
	case errors.Is(err, customerrors.ErrShortCodeNotFound):
		return fmt.Errorf("short code '%s' not found", code)
	case errors.Is(err, customerrors.ErrShortCodeTaken):
		return fmt.Errorf("short code '%s' is already in use", code)
	case errors.Is(err, customerrors.ErrDatabaseConnection):
		return fmt.Errorf("database unavailable: %w", err)
	default:
		return err
	}
}
