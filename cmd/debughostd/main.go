// Command debughostd is the debug host's standalone process: it attaches to
// one Nashorn/JDWP target, serves /healthz and /metrics, and pushes the
// event bus out over a bare WebSocket for local smoke-testing. It stands in
// for the CDP JSON-RPC layer spec.md places out of scope (see
// internal/eventbus), the way cmd/main.go stands up the rest of the
// backend's HTTP surface.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apex-build/internal/debughost"
	"apex-build/internal/eventbus"
	"apex-build/internal/hostconfig"
	"apex-build/internal/hostlog"
	"apex-build/internal/metrics"
	"apex-build/internal/sessionstore"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// buildVersion is overridable at link time: -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			if err := godotenv.Load("../../.env"); err != nil {
				// no .env in any of the usual spots: environment variables alone are fine
			}
		}
	}

	hostlog.Init()
	log := hostlog.L()
	defer hostlog.Sync()

	cfg, err := hostconfig.Load()
	if err != nil {
		log.Fatal("debughostd: invalid configuration", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := sessionstore.Open(envOrDefault("DEBUGHOST_DB_PATH", "debughost.db"))
	if err != nil {
		log.Fatal("debughostd: opening session store failed", zap.Error(err))
	}
	defer store.Close()

	log.Info("debughostd: attaching to target",
		zap.String("host", cfg.TargetHost), zap.Int("port", cfg.TargetPort))

	host, err := debughost.Attach(cfg.TargetHost, cfg.TargetPort)
	if err != nil {
		log.Fatal("debughostd: attach failed", zap.Error(err))
	}

	sessionID, err := store.StartSession(cfg.TargetHost, cfg.TargetPort)
	if err != nil {
		log.Warn("debughostd: recording session start failed", zap.Error(err))
	}
	go recordScriptsForPostMortem(host, store, sessionID, log)

	metrics.Get().BuildInfo.WithLabelValues(buildVersion).Set(1)

	hub := eventbus.NewHub(host)

	router := gin.New()
	router.Use(metrics.PrometheusMiddleware())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"paused": host.IsPaused(), "scripts": len(host.Scripts())})
	})
	router.GET("/metrics", metrics.PrometheusHandler())
	router.GET("/ws", func(c *gin.Context) { hub.Handler(c.Writer, c.Request) })

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	collector := metrics.NewCollector(host, 5*time.Second)
	collector.Start()
	defer collector.Stop()

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("debughostd: listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal("debughostd: server failed", zap.Error(err))
	case sig := <-quit:
		log.Info("debughostd: received signal, shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("debughostd: HTTP shutdown error", zap.Error(err))
	}
	if sessionID != "" {
		if err := store.EndSession(sessionID); err != nil {
			log.Warn("debughostd: recording session end failed", zap.Error(err))
		}
	}
	log.Info("debughostd: stopped")
}

// recordScriptsForPostMortem subscribes to the host's event bus purely to
// persist each newly-registered script, independent of the live WebSocket
// forwarding in internal/eventbus.
func recordScriptsForPostMortem(host *debughost.Host, store *sessionstore.Store, sessionID string, log *zap.Logger) {
	if sessionID == "" {
		return
	}
	sub := host.Events.Subscribe()
	defer host.Events.Unsubscribe(sub)
	for ev := range sub {
		if ev.Kind != debughost.EventScriptAdded || ev.Script == nil {
			continue
		}
		if err := store.RecordScript(sessionID, ev.Script.ID, ev.Script.URL, ev.Script.ContentsHash); err != nil {
			log.Warn("debughostd: recording script failed", zap.Error(err))
		}
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
