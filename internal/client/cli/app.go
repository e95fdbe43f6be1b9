// Package cli implements the interactive shell of the vagais client.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/mlaitechio/vagais-go/internal/client/api"
	"github.com/mlaitechio/vagais-go/internal/client/config"
	"github.com/mlaitechio/vagais-go/internal/client/db"
	"github.com/mlaitechio/vagais-go/internal/client/models"
	"github.com/mlaitechio/vagais-go/internal/client/repositories/state"
	"github.com/mlaitechio/vagais-go/internal/client/session"
	"github.com/mlaitechio/vagais-go/internal/logging"

	_ "modernc.org/sqlite"
)

// sessionManager is the slice of the session manager the shell needs.
type sessionManager interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, req api.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context) error
	RefreshUser(ctx context.Context) error
	CurrentUser() *models.User
	IsAuthenticated() bool
	ExpiresAt() time.Time
}

type App struct {
	config  *config.Config
	session sessionManager
	api     api.Client
	log     logging.Logger
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	store := state.NewSQLiteRepository(database)
	apiClient := api.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout, log)
	sm := session.NewManager(apiClient, store, log)

	return &App{
		config:  cfg,
		session: sm,
		api:     apiClient,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if err := a.session.Initialize(ctx); err != nil {
		return err
	}
	a.Root(ctx)
	return nil
}
