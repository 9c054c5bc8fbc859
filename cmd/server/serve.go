package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"focusbeat/backend/internal/ads"
	"focusbeat/backend/internal/audio"
	"focusbeat/backend/internal/clock"
	"focusbeat/backend/internal/config"
	"focusbeat/backend/internal/handler"
	"focusbeat/backend/internal/repository"
	"focusbeat/backend/internal/router"
	"focusbeat/backend/internal/service"
	"focusbeat/backend/internal/workspace"
	"focusbeat/backend/pkg/adplugin"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, logger)
	},
}

func runServe(ctx context.Context, cfg config.Config, logger hclog.Logger) error {
	st, err := openStorage(cfg, logger.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	location, err := time.LoadLocation(cfg.Timer.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timer.Timezone, err)
	}

	catalog, err := audio.LoadCatalog(cfg.Audio.CatalogPath, logger.Named("catalog"))
	if err != nil {
		return err
	}
	slots, err := ads.LoadSlots(cfg.Ads.SlotsPath)
	if err != nil {
		return err
	}

	plugins := adplugin.NewManager(cfg.Ads.PluginDir, logger.Named("plugins"))
	defer plugins.UnloadAll()
	providers := ads.NewProviders(cfg.Ads.Endpoints, cfg.Ads.AdSenseClientID, cfg.Ads.LoadTimeout)
	providers = append(providers, loadPluginProviders(plugins, cfg.Ads.Plugins, logger)...)

	var prober audio.Prober
	if cfg.Audio.ProbeSources {
		prober = audio.NewHTTPProber(cfg.Audio.ProbeTimeout)
	}

	manager := workspace.NewManager(workspace.Options{
		Clock:     clock.Real{},
		Store:     st.store,
		Playlists: catalog,
		Prober:    prober,
		Providers: providers,
		Slots:     slots,
		Location:  location,
		Logger:    logger.Named("workspace"),
		Timer:     cfg.Timer,
		Audio:     cfg.Audio,
		Ads:       cfg.Ads,
	})
	defer manager.CloseAll()

	profileRepo := repository.NewProfileRepository(st.db)
	authService := service.NewAuthService(profileRepo, manager, cfg.JWTSecret, cfg.TokenTTL)
	handlers := router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Timer:  handler.NewTimerHandler(service.NewTimerService(manager)),
		Stats:  handler.NewStatsHandler(service.NewStatsService(manager)),
		Audio:  handler.NewAudioHandler(service.NewAudioService(manager)),
		Ads:    handler.NewAdHandler(service.NewAdService(manager)),
		Events: handler.NewEventHandler(service.NewEventService(manager), 0),
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(authService, handlers, cfg.CORSOrigins, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("backend listening", "addr", srv.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Closing the workspaces ends open event streams so Shutdown is
		// not held up by them.
		manager.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Audio.WatchCatalog {
		g.Go(func() error {
			return catalog.Watch(gctx)
		})
	}

	return g.Wait()
}

// pluginNames returns the configured plugins, or every executable in the
// plugin directory when none are configured.
func pluginNames(plugins *adplugin.Manager, configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	return plugins.Discover()
}

func loadPluginProviders(plugins *adplugin.Manager, configured []string, logger hclog.Logger) []ads.Provider {
	names, err := pluginNames(plugins, configured)
	if err != nil {
		logger.Warn("ad plugin discovery failed", "error", err)
		return nil
	}
	if len(names) == 0 {
		return nil
	}
	providers := make([]ads.Provider, 0, len(names))
	for _, name := range names {
		loaded, err := plugins.Load(name)
		if err != nil {
			logger.Warn("ad plugin unavailable", "name", name, "error", err)
			continue
		}
		providers = append(providers, ads.PluginProvider{Impl: loaded.Provider})
	}
	return providers
}
