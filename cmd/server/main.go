package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/catalog"
	"github.com/iliyamo/cardgame-backend/internal/config"
	"github.com/iliyamo/cardgame-backend/internal/database"
	"github.com/iliyamo/cardgame-backend/internal/handler"
	"github.com/iliyamo/cardgame-backend/internal/logging"
	"github.com/iliyamo/cardgame-backend/internal/migrate"
	"github.com/iliyamo/cardgame-backend/internal/queue"
	"github.com/iliyamo/cardgame-backend/internal/receipt"
	"github.com/iliyamo/cardgame-backend/internal/repository"
	"github.com/iliyamo/cardgame-backend/internal/repository/memory"
	"github.com/iliyamo/cardgame-backend/internal/repository/redisstore"
	"github.com/iliyamo/cardgame-backend/internal/router"
	"github.com/iliyamo/cardgame-backend/internal/service"
)

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// stores holds the repositories selected by configuration.
type stores struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	saves     repository.SaveRepository
	purchases repository.PurchaseRepository
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	var db *sql.DB
	if cfg.StorageBackend == config.BackendMySQL {
		var err error
		if db, err = database.Open(ctx, cfg); err != nil {
			return err
		}
		defer db.Close()
		if cfg.DBMigrate {
			if err := migrate.Up(ctx, db); err != nil {
				return err
			}
			log.Info("migrations applied")
		}
	}

	// Redis is optional: without it sessions fall back to the storage
	// backend and rate limiting/caching are disabled.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn("redis unavailable; rate limiting and response cache disabled", zap.String("addr", cfg.Redis.Address()))
	}

	st := buildStores(cfg, db, rdb, log)

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		var err error
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			return err
		}
	}
	log.Info("catalog loaded", zap.Int("products", len(cat.Products())))

	verifiers := buildVerifiers(cfg, log)

	var events service.EventPublisher
	if cfg.Queue.Enabled {
		events = queue.NewPublisher(cfg.Queue.URL, log)
		if cfg.Queue.AuditConsumer {
			consumer := queue.NewAuditConsumer(cfg.Queue.URL, cfg.Queue.PurchaseLogPath, log)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("purchase audit consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	ids := service.RandomIDs{}
	identity := service.NewIdentityService(st.users, ids, log)
	sessions := service.NewSessionManager(st.sessions, ids, cfg.SessionTTL, log)
	saves := service.NewSaveService(st.saves, cfg.StarterGems, cfg.MaxSaveBytes, log)
	ledger := service.NewPurchaseLedger(st.purchases, saves, cat, verifiers, events, log)

	go sessions.RunJanitor(ctx, cfg.SessionPurgeEvery)

	e := router.NewEcho(cfg, log)
	router.RegisterRoutes(e, router.Handlers{
		Health:   handler.NewHealthHandler(cfg.ServiceName, router.Endpoints),
		Auth:     handler.NewAuthHandler(identity, sessions, saves, cfg.StorageTimeout),
		Game:     handler.NewGameHandler(sessions, saves, cfg.StorageTimeout),
		Purchase: handler.NewPurchaseHandler(sessions, ledger, saves, cfg.StorageTimeout),
		Products: handler.NewProductHandler(cat),
	}, cfg, rdb, log)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("storage", cfg.StorageBackend), zap.String("sessions", cfg.SessionBackend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func buildStores(cfg config.Config, db *sql.DB, rdb *redis.Client, log *zap.Logger) stores {
	var st stores
	if cfg.StorageBackend == config.BackendMySQL {
		st.users = repository.NewUserRepo(db)
		st.saves = repository.NewSaveRepo(db)
		st.purchases = repository.NewPurchaseRepo(db)
	} else {
		saveStore := memory.NewSaveStore()
		st.users = memory.NewUserStore()
		st.saves = saveStore
		st.purchases = memory.NewPurchaseStore(saveStore)
	}

	backend := cfg.SessionBackend
	if backend == config.BackendRedis && rdb == nil {
		backend = cfg.StorageBackend
		log.Warn("redis session backend unavailable; falling back", zap.String("backend", backend))
	}
	switch backend {
	case config.BackendRedis:
		st.sessions = redisstore.NewSessionStore(rdb, cfg.Redis.SessionPrefix, cfg.SessionRetention)
	case config.BackendMySQL:
		st.sessions = repository.NewSessionRepo(db)
	default:
		st.sessions = memory.NewSessionStore()
	}
	return st
}

func buildVerifiers(cfg config.Config, log *zap.Logger) *receipt.Registry {
	reg := receipt.NewRegistry()
	if cfg.ReceiptSecret != "" {
		jws := receipt.NewJWSVerifier([]byte(cfg.ReceiptSecret))
		for _, p := range cfg.ReceiptSignedPlatforms {
			if p = strings.TrimSpace(p); p != "" {
				reg.Register(p, jws)
			}
		}
	}
	for _, p := range cfg.ReceiptSandboxPlatforms {
		if p = strings.TrimSpace(p); p != "" {
			reg.Register(p, receipt.Sandbox{})
			log.Warn("sandbox receipt verifier enabled; receipts are not checked", zap.String("platform", p))
		}
	}
	if len(reg.Platforms()) == 0 {
		log.Warn("no receipt verifiers configured; every purchase will be rejected")
	}
	return reg
}
