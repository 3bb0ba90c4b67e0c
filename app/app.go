// Package app wires config, store, cache, and the push worker pool into a
// running relay, the way gnp-x-stegodon's app.go wires db/ssh/http together.
package app

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deemkeen/aprelay/activitypub"
	"github.com/deemkeen/aprelay/cache"
	"github.com/deemkeen/aprelay/config"
	"github.com/deemkeen/aprelay/store"
	"github.com/deemkeen/aprelay/util"
	"github.com/deemkeen/aprelay/web"
)

// App owns the relay's long-lived dependencies and its HTTP server.
type App struct {
	config     *config.Config
	store      *store.SQLiteStore
	cache      cache.Cache
	pool       *activitypub.WorkerPool
	httpServer *http.Server
	levelCh    chan string
	sweepStop  context.CancelFunc
	done       chan os.Signal
}

// New creates an App for the given configuration. Mirrors the teacher's
// app.New(conf) constructor shape.
func New(cfg *config.Config) (*App, error) {
	return &App{
		config: cfg,
		done:   make(chan os.Signal, 1),
	}, nil
}

// Initialize opens the store, bootstraps the actor keypair and config
// defaults on first run, builds the cache backend, and assembles the HTTP
// router. Mirrors the teacher's Initialize (migrations, then server setup).
func (a *App) Initialize() error {
	a.levelCh = make(chan string, 1)

	log.Println("Opening store and running migrations...")
	s, err := store.Open(a.config.DBPath, a.levelCh)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = s
	log.Println("Store ready")

	if err := a.bootstrapConfig(); err != nil {
		return fmt.Errorf("bootstrap config: %w", err)
	}

	privateKeyPEM, _, err := a.store.GetConfig(store.ConfigPrivateKey)
	if err != nil {
		return fmt.Errorf("read bootstrapped private key: %w", err)
	}
	publicKeyPEM, err := derivePublicKeyPEM(privateKeyPEM)
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	c, err := a.buildCache()
	if err != nil {
		return fmt.Errorf("build cache backend: %w", err)
	}
	a.cache = c

	deps := activitypub.Deps{
		Store:      a.store,
		Cache:      a.cache,
		HTTPClient: activitypub.NewDefaultHTTPClient(a.config.PushTimeout),
		PrivateKey: privateKeyPEM,
		KeyID:      fmt.Sprintf("https://%s/actor#main-key", a.config.Host),
		Host:       a.config.Host,
	}
	a.pool = activitypub.NewWorkerPool(deps, a.config.PushWorkers*4, a.levelCh)
	deps.Queue = a.pool.Queue()

	router := web.Router(a.config, deps, publicKeyPEM)
	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	return nil
}

// bootstrapConfig seeds store-resident config rows from the YAML defaults on
// first run only; an existing row is left untouched since it may have been
// changed via the admin CLI since.
func (a *App) bootstrapConfig() error {
	if _, _, err := a.store.GetConfig(store.ConfigPrivateKey); err != nil {
		pair := util.GeneratePemKeypair()
		if err := a.store.PutConfig(store.ConfigPrivateKey, pair.Private); err != nil {
			return fmt.Errorf("seed private key: %w", err)
		}
		log.Println("Generated a new actor keypair")
	}

	seed := map[string]string{
		store.ConfigName:             a.config.Name,
		store.ConfigNote:             a.config.Note,
		store.ConfigApprovalRequired: boolString(a.config.ApprovalRequired),
		store.ConfigWhitelistEnabled: boolString(a.config.WhitelistEnabled),
		store.ConfigLogLevel:         a.config.LogLevel,
	}
	for key, value := range seed {
		if _, _, err := a.store.GetConfig(key); err == nil {
			continue
		}
		if err := a.store.PutConfig(key, value); err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
	}
	return nil
}

func (a *App) buildCache() (cache.Cache, error) {
	switch a.config.CacheBackend {
	case "redis":
		return cache.NewRedisCache(a.config.RedisAddr)
	default:
		return cache.NewSQLiteCache(a.store.DB()), nil
	}
}

func derivePublicKeyPEM(privateKeyPEM string) (string, error) {
	priv, err := activitypub.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Start starts the worker pool, the periodic cache sweep, and the HTTP
// server, then blocks until a shutdown signal arrives. Mirrors the teacher's
// Start (start background work, then block on a.done).
func (a *App) Start() error {
	a.pool.Start(a.config.PushWorkers)

	sweepCtx, cancel := context.WithCancel(context.Background())
	a.sweepStop = cancel
	go a.sweepLoop(sweepCtx)

	signal.Notify(a.done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Starting HTTP server on :%d", a.config.Port)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-a.done
	log.Println("Shutdown signal received")
	return a.Shutdown()
}

// sweepLoop periodically bounds the cache's dedup/response entries, the way
// klppl-klistr's account resyncer runs a ticker loop alongside a context
// cancellation signal.
func (a *App) sweepLoop(ctx context.Context) {
	interval := time.Duration(a.config.CacheSweepH) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.cache.DeleteOld(a.config.CacheSweepH)
			if err != nil {
				log.Printf("cache sweep error: %v", err)
				continue
			}
			log.Printf("cache sweep removed %d stale entries", n)
		}
	}
}

// Shutdown stops the HTTP server, the sweep loop, and drains the worker pool,
// in that order, with a 30 second timeout. Mirrors the teacher's Shutdown
// shape (HTTP first, then the other long-lived components).
func (a *App) Shutdown() error {
	log.Println("Initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error

	log.Println("Stopping HTTP server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		shutdownErr = err
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	if a.sweepStop != nil {
		a.sweepStop()
	}

	log.Println("Draining push worker pool...")
	a.pool.Stop()

	log.Println("Closing cache and store...")
	if err := a.cache.Close(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	if err := a.store.Close(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}

	log.Println("All components stopped")
	return shutdownErr
}
