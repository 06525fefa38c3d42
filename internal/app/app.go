// Package app opens the configured store and builds the services on top of it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"fieldops/internal/audit"
	"fieldops/internal/auth"
	"fieldops/internal/config"
	"fieldops/internal/db"
	"fieldops/internal/permission"
	"fieldops/internal/repository"
	"fieldops/internal/service"
)

type Backend struct {
	Store repository.Store
	Tasks repository.TaskRepository
	// DB is nil for the memory store.
	DB *sql.DB

	close func() error
}

func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	switch cfg.Store {
	case "memory":
		mem := repository.NewMemoryStore()
		if cfg.MemorySnapshot != "" {
			var err error
			if mem, err = repository.LoadMemoryStore(cfg.MemorySnapshot); err != nil {
				return nil, err
			}
		}
		log.Info("memory_store_opened", "snapshot", cfg.MemorySnapshot)
		return &Backend{Store: mem, Tasks: mem, close: func() error {
			if cfg.MemorySnapshot == "" {
				return nil
			}
			return mem.Save(cfg.MemorySnapshot)
		}}, nil
	default:
		database, err := db.NewDB(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		pg := repository.NewPostgresStore(database)
		return &Backend{Store: pg, Tasks: pg, DB: database, close: database.Close}, nil
	}
}

// Close saves the memory snapshot or closes the pool.
func (b *Backend) Close() error {
	return b.close()
}

type Services struct {
	Orders   *service.OrderService
	Requests *service.RequestService
	Wallet   *service.WalletService
	Catalog  *service.CatalogService
	Access   *service.AccessService
	Tokens   *auth.TokenIssuer
	Authz    *permission.Authorizer
}

func NewServices(cfg *config.Config, store repository.Store, auditor audit.Auditor, rec service.Recorder, log *slog.Logger) *Services {
	d := service.Deps{Store: store, Auditor: auditor, Metrics: rec}
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authz := permission.NewAuthorizer(store, log)
	orders := service.NewOrderService(d)
	return &Services{
		Orders:   orders,
		Requests: service.NewRequestService(d, orders),
		Wallet:   service.NewWalletService(d),
		Catalog:  service.NewCatalogService(d),
		Access:   service.NewAccessService(d, tokens, authz),
		Tokens:   tokens,
		Authz:    authz,
	}
}

// Bootstrap seeds the default roles and the configured admin account.
func (s *Services) Bootstrap(ctx context.Context, cfg *config.Config) error {
	if err := s.Access.SeedRoles(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	if err := s.Access.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	return nil
}
