package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/todoserver/internal/db"
	"github.com/nkiryanov/todoserver/internal/handlers"
	"github.com/nkiryanov/todoserver/internal/logger"
	"github.com/nkiryanov/todoserver/internal/notify"
	"github.com/nkiryanov/todoserver/internal/repository/postgres"
	"github.com/nkiryanov/todoserver/internal/service/account"
	"github.com/nkiryanov/todoserver/internal/service/auth"
	"github.com/nkiryanov/todoserver/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/todoserver/internal/service/janitor"
	"github.com/nkiryanov/todoserver/internal/service/todo"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger     logger.Logger
	pool       *pgxpool.Pool
	dispatcher *notify.Dispatcher
	janitor    *janitor.Janitor
}

// Pick email sender by config: SMTP if address is set, log otherwise
func NewSender(c *Config, l logger.Logger) notify.Sender {
	if c.SMTPAddr != "" {
		return &notify.SMTPSender{Addr: c.SMTPAddr, Username: c.SMTPUsername, Password: c.SMTPPassword}
	}
	return &notify.LogSender{Logger: l}
}

func NewServerApp(ctx context.Context, c *Config, l logger.Logger, sender notify.Sender) (*ServerApp, error) {
	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize email delivery
	renderer, err := notify.NewRenderer()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while loading email templates. Err: %w", err)
	}
	dispatcher := notify.NewDispatcher(notify.Config{From: c.EmailFrom}, renderer, sender, l)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	accountService, err := account.NewService(account.Config{BaseURL: c.BaseURL}, storage, tokenManager, dispatcher)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating account service. Err: %w", err)
	}
	todoService := todo.NewService(storage.Task())

	authenticator := auth.ChainAuthenticator{
		auth.OpaqueAuthenticator{Tokens: storage.AuthToken()},
		auth.JWTAuthenticator{Tokens: tokenManager, Users: storage.User()},
	}

	cleaner := janitor.New(c.JanitorInterval, l,
		janitor.Job{Name: "delete done tasks", Run: todoService.DeleteDone},
		janitor.Job{Name: "prune used tokens", Run: func(ctx context.Context) (int64, error) {
			return storage.UsedToken().DeleteExpired(ctx, time.Now())
		}},
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handlers.NewRouter(accountService, todoService, authenticator, l),
		logger:     l,
		pool:       pool,
		dispatcher: dispatcher,
		janitor:    cleaner,
	}, nil
}

// Run starts http server with background workers and stops all of them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", "addr", s.ListenAddr)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(timeoutCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		return err
	})

	// Workers outlive http server and drain the queue after it stops
	workersCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	dispatcherStopped := s.dispatcher.Run(workersCtx)
	janitorStopped := s.janitor.Run(workersCtx)

	err := g.Wait()

	stopWorkers()
	<-dispatcherStopped
	<-janitorStopped

	return err
}
