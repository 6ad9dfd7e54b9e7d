package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/zmanup/invoicing-api/internal/app"
	"github.com/zmanup/invoicing-api/internal/auth"
	"github.com/zmanup/invoicing-api/internal/config"
	"github.com/zmanup/invoicing-api/internal/database"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var version = "1.0.0"

// env is the wiring shared by all subcommands, built once before any of them runs
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	svc *app.Services
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Administer the invoicing API",
		Long:          "invoicectl talks to the invoicing database directly, using the same configuration as the API server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}

	root.AddCommand(
		newUserCmd(e),
		newTokenCmd(e),
		newSequenceCmd(e),
		newDocumentCmd(e),
		newReportCmd(e),
	)
	return root
}

func (e *env) init(ctx context.Context) error {
	basic, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	e.log, err = logger.NewLogger(&basic.Logging, &basic.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.cfg, err = config.LoadWithSecrets(ctx, e.log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	e.db, err = database.NewDatabase(&e.cfg.Database, e.log)
	if err != nil {
		return err
	}
	e.svc, err = app.NewServices(e.cfg, e.db, e.log)
	return err
}

// actAs loads a user and returns a context authenticated as them, for audit attribution
func (e *env) actAs(ctx context.Context, userID string) (context.Context, *domain.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid user id %q", userID)
	}
	user, err := e.svc.UserRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("user %s: %w", id, err)
	}
	return auth.WithUserContext(ctx, &auth.UserContext{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		BusinessType: user.BusinessType,
	}), user, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
