package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/browser/chrome"
	"github.com/ternarybob/pagerender/internal/browser/static"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/handlers"
	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/services/bridge"
	"github.com/ternarybob/pagerender/internal/services/cookies"
	"github.com/ternarybob/pagerender/internal/services/render"
	"github.com/ternarybob/pagerender/internal/services/scheduler"
	"github.com/ternarybob/pagerender/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Cookie services
	CookieJar     *cookies.Jar
	CookieService *cookies.Service

	// Render services
	BrowserPool      *chrome.Pool // nil with the static engine
	SurfaceFactory   interfaces.SurfaceFactory
	RenderController *render.Controller
	Dispatcher       *bridge.Dispatcher
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	ChannelHandler *handlers.ChannelHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("engine", app.SurfaceFactory.Name()).
		Int("cookies", app.CookieJar.Len()).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices builds the cookie jar, the surface factory for the configured
// engine, the render controller and the maintenance scheduler
func (a *App) initServices() error {
	ctx := context.Background()

	a.CookieJar = cookies.NewJar(a.StorageManager.CookieStorage(), a.Logger)
	if err := a.CookieJar.Load(ctx); err != nil {
		return err
	}
	a.CookieService = cookies.NewService(a.CookieJar, a.Logger)

	switch a.Config.Render.Engine {
	case "static":
		a.SurfaceFactory = static.NewFactory(a.Config.Render.DefaultTimeout.Std(), a.CookieJar, a.CookieJar, a.Logger)
	default:
		a.BrowserPool = chrome.NewPool(a.Config.Browser, a.Logger)
		if err := a.BrowserPool.Start(); err != nil {
			return fmt.Errorf("failed to start browser pool: %w", err)
		}
		a.SurfaceFactory = chrome.NewFactory(a.BrowserPool, a.CookieJar, a.CookieJar, a.Logger)
	}

	a.RenderController = render.NewController(render.ControllerConfigFrom(a.Config), a.SurfaceFactory, a.CookieService, a.Logger)
	a.Dispatcher = bridge.NewDispatcher(a.CookieService, a.RenderController, a.Logger)

	a.SchedulerService = scheduler.NewService(a.Logger)
	if err := scheduler.RegisterCookieJobs(a.SchedulerService, a.CookieJar, a.StorageManager.CookieStorage(), a.Config.Cookies, a.Logger); err != nil {
		return err
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.RenderController, a.SchedulerService, a.Logger)
	a.ChannelHandler = handlers.NewChannelHandler(a.Dispatcher, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Dispatcher, a.Logger)
}

// Close stops the scheduler, persists the cookie jar and releases the
// browser pool and storage
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.CookieJar != nil {
		if err := a.CookieJar.Flush(context.Background()); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to flush cookie jar")
		} else {
			a.Logger.Info().Int("cookies", a.CookieJar.Len()).Msg("Cookie jar flushed")
		}
	}

	if a.BrowserPool != nil {
		if err := a.BrowserPool.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down browser pool")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
