// Package bootstrap wires the runtime's components together once, in the
// order the framework has always initialized in: logging and the admin
// notification hook, the history store, plugin discovery, serial
// INITIALIZER execution (purging any plugin whose INITIALIZER fails), and
// finally the UNCONDITIONAL scheduler if any plugin needs it.
package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/askr-bot/askr/internal/admin"
	"github.com/askr-bot/askr/internal/config"
	"github.com/askr-bot/askr/internal/dispatch"
	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/gateway"
	"github.com/askr-bot/askr/internal/history"
	"github.com/askr-bot/askr/internal/logger"
	"github.com/askr-bot/askr/internal/plugins"
	"github.com/askr-bot/askr/internal/sandbox"
	"github.com/askr-bot/askr/internal/scheduler"
)

// Runtime is everything an ingress handler needs once Bootstrap has run.
type Runtime struct {
	Config     config.Config
	Registry   *plugins.Registry
	Store      *history.Store
	Gateway    *gateway.Client
	Admin      *admin.Channel
	Dispatcher *dispatch.Dispatcher
	Scheduler  *scheduler.Scheduler
}

var (
	once  sync.Once
	rt    *Runtime
	rtErr error
)

// Get returns the process-wide Runtime, building it on first call. Later
// calls return the same instance without re-running initialization — the
// Go equivalent of the framework's double-checked-locking initializer
// guard, made trivial by sync.Once.
func Get(cfg config.Config) (*Runtime, error) {
	once.Do(func() {
		rt, rtErr = build(cfg)
	})
	return rt, rtErr
}

func build(cfg config.Config) (*Runtime, error) {
	gatewayClient := gateway.New(
		cfg.Gateway.BaseURL,
		time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second,
		time.Duration(cfg.Gateway.StatusCheckTimeoutSeconds)*time.Second,
		cfg.Gateway.MaxRetries,
	)

	adminChannel := admin.New(cfg.Admin, gatewayClient)
	logger.Log = logger.Log.Hook(adminChannel.Hook())

	store, err := history.Open(cfg.Paths.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open history store: %w", err)
	}

	registry := plugins.NewRegistry()
	discovery := plugins.NewDiscovery(cfg.Paths.PluginsDir)
	for _, loadErr := range discovery.DiscoverAll(registry) {
		logger.Plugins().Error().Err(loadErr).Msg("plugin failed to load")
	}

	runInitializers(registry, cfg)

	caps := sandbox.Caps{
		MaxCPUSeconds:  cfg.Execution.MaxCPUSeconds,
		MaxWallSeconds: cfg.Execution.MaxWallSeconds,
		MemoryLimitMB:  cfg.Execution.MemoryLimitMB,
		PollInterval:   time.Duration(cfg.Execution.PollIntervalMS) * time.Millisecond,
	}
	runner := sandbox.NewRunner(cfg.Execution.WorkerBinary, cfg.Gateway.BaseURL, cfg.Paths.DatabaseFile, caps)
	wallCap := time.Duration(cfg.Execution.MaxWallSeconds * float64(time.Second))
	dispatcher := dispatch.New(runner, wallCap)

	sched := scheduler.New(registry, func(ctx context.Context, handlers []plugins.BoundHandler, raw eventkind.RawEvent, onResult func(value any)) {
		dispatcher.Dispatch(ctx, handlers, nil, raw, func(o sandbox.Outcome) {
			onResult(o.Value)
		})
	}, adminChannel.Muted)
	sched.SetSender(gatewayClient)

	if registry.HasUnconditionals() {
		if err := sched.Start(); err != nil {
			logger.Scheduler().Error().Err(err).Msg("failed to start unconditional scheduler")
		}
	}

	logPluginSummary(registry)

	return &Runtime{
		Config:     cfg,
		Registry:   registry,
		Store:      store,
		Gateway:    gatewayClient,
		Admin:      adminChannel,
		Dispatcher: dispatcher,
		Scheduler:  sched,
	}, nil
}

// runInitializers executes every registered INITIALIZER serially, purging
// any plugin whose initializer errors or returns a non-nil value — a single
// bad plugin never blocks the rest of the registry from coming up.
func runInitializers(registry *plugins.Registry, cfg config.Config) {
	initializers := registry.Initializers()
	if len(initializers) == 0 {
		return
	}
	logger.Plugins().Info().Int("count", len(initializers)).Msg("executing INITIALIZER plugins")

	raw := eventkind.RawEvent{"post_type": "initializer", "time": float64(time.Now().Unix())}

	for _, h := range initializers {
		bot, err := plugins.NewBotContext(h.PluginName, cfg.Gateway.BaseURL, cfg.Paths.DatabaseFile)
		if err != nil {
			logger.Plugins().Error().Str("plugin", h.PluginName).Err(err).Msg("INITIALIZER bot context unavailable, purging plugin")
			registry.Purge(h.PluginName)
			continue
		}
		ctx := &plugins.HandlerContext{RawEvent: raw, Bot: bot}
		result, err := h.Fn(ctx)
		bot.Close()
		switch {
		case err != nil:
			logger.Plugins().Error().Str("plugin", h.PluginName).Err(err).Msg("INITIALIZER failed, purging plugin")
			registry.Purge(h.PluginName)
		case result != nil:
			logger.Plugins().Error().Str("plugin", h.PluginName).Interface("returned", result).
				Msg("INITIALIZER returned a non-null value, purging plugin")
			registry.Purge(h.PluginName)
		default:
			logger.Plugins().Info().Str("plugin", h.PluginName).Msg("INITIALIZER completed successfully")
		}
	}
}

func logPluginSummary(registry *plugins.Registry) {
	names := registry.Plugins()
	logger.Plugins().Info().
		Int("plugins", len(names)).
		Bool("unconditionals", registry.HasUnconditionals()).
		Msg("plugin initialization complete")
}
