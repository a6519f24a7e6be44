// Command askrd is the bot-framework kernel's HTTP entrypoint: it receives
// inbound chat-platform events, classifies them, archives them, dispatches
// them to matching plugins in parallel sandboxes, and relays whatever
// replies come back to the gateway.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/askr-bot/askr/internal/bootstrap"
	"github.com/askr-bot/askr/internal/config"
	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"
	"github.com/askr-bot/askr/internal/outbound"
	"github.com/askr-bot/askr/internal/sandbox"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := getEnv("ASKR_CONFIG", "./config.yaml")

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)

	rt, err := bootstrap.Get(cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer rt.Store.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/", ingressHandler(rt))

	srv := &http.Server{
		Addr:              cfg.Listen.Host + ":" + strconv.Itoa(cfg.Listen.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.HTTP().Info().Str("addr", srv.Addr).Msg("listening for inbound events")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}
	if rt.Scheduler != nil {
		rt.Scheduler.Stop()
	}
}

// ingressHandler always answers 200 — the gateway treats anything else as
// a delivery failure and will retry, which would duplicate every event.
func ingressHandler(rt *bootstrap.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw eventkind.RawEvent
		if err := c.ShouldBindJSON(&raw); err != nil {
			logger.HTTP().Warn().Err(err).Msg("failed to decode inbound event body")
			c.String(http.StatusOK, "OK")
			return
		}

		if rt.Admin.Dispatch(raw) {
			c.String(http.StatusOK, "OK")
			return
		}
		if rt.Admin.Muted() {
			c.String(http.StatusOK, "OK")
			return
		}

		dispatchEvent(rt, raw)
		c.String(http.StatusOK, "OK")
	}
}

// dispatchEvent runs the full classify-archive-dispatch pipeline inline:
// the request thread blocks until every matching handler completes or the
// dispatcher's own wall_time_cap+5s timeout fires.
func dispatchEvent(rt *bootstrap.Runtime, raw eventkind.RawEvent) {
	kind := eventkind.Classify(raw)
	if kind == eventkind.Unexpected {
		return
	}

	simple := eventkind.Simplify(kind, raw)

	rt.Store.Archive(kind, raw)

	handlers := rt.Registry.Lookup(kind)
	if len(handlers) == 0 {
		return
	}

	wallCap := time.Duration(rt.Config.Execution.MaxWallSeconds*float64(time.Second)) + 5*time.Second
	ctx, cancel := context.WithTimeout(context.Background(), wallCap)
	defer cancel()

	rt.Dispatcher.Dispatch(ctx, handlers, simple, raw, func(outcome sandbox.Outcome) {
		outbound.Parse(rt.Gateway, outcome.Value, kind, raw)
	})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
