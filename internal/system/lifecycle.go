package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fweiler/OpenSupplyCore/internal/api/rest"
	"github.com/fweiler/OpenSupplyCore/internal/api/websocket"
	"github.com/fweiler/OpenSupplyCore/internal/auth"
	"github.com/fweiler/OpenSupplyCore/internal/config"
	"github.com/fweiler/OpenSupplyCore/internal/devices"
	"github.com/fweiler/OpenSupplyCore/internal/interfaces"
	"github.com/fweiler/OpenSupplyCore/internal/storage"
	"github.com/fweiler/OpenSupplyCore/internal/vds"
	"go.uber.org/zap"
)

// LifecycleManager wires storage, the module manager, the WebSocket hub and
// the REST API together and owns startup/shutdown ordering.
type LifecycleManager struct {
	config        *config.Config
	storage       *storage.PostgresClient
	moduleManager *devices.Manager
	authService   *auth.AuthService
	wsHub         *websocket.Hub
	logger        *zap.Logger

	restServer *rest.Server

	stateMu      sync.RWMutex
	currentState SystemState

	updates     chan vds.Update
	archiveWG   sync.WaitGroup
	archiveStop chan struct{}

	shutdownOnce sync.Once
}

func NewLifecycleManager(
	store *storage.PostgresClient,
	cfg *config.Config,
	logger *zap.Logger,
) *LifecycleManager {
	moduleManager, err := devices.NewManager(cfg.Modules.SearchPaths, logger)
	if err != nil {
		logger.Fatal("Failed to create module manager", zap.Error(err))
	}

	authService := auth.NewAuthService(store, cfg.Auth)
	wsHub := websocket.NewHub(logger, authService)

	return &LifecycleManager{
		config:        cfg,
		storage:       store,
		moduleManager: moduleManager,
		authService:   authService,
		wsHub:         wsHub,
		logger:        logger,
		currentState:  StateInitializing,
		updates:       make(chan vds.Update, 1024),
		archiveStop:   make(chan struct{}),
	}
}

// Start brings up the whole system.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting OpenSupplyCore")

	lm.setState(StateInitializing)

	go lm.wsHub.Run()

	lm.archiveWG.Add(1)
	go lm.archiveLoop()

	if err := lm.loadModules(); err != nil {
		lm.setState(StateError)
		return err
	}

	if err := lm.startRESTServer(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Int("modules", len(lm.moduleManager.ListModules())))

	return nil
}

// loadModules loads every configured module instance and starts its poller.
// A module that fails to load is skipped; the crate keeps running with the
// rest.
func (lm *LifecycleManager) loadModules() error {
	timeout := lm.config.VME.DefaultTimeout

	for _, instance := range lm.config.Modules.Instances {
		module, err := lm.moduleManager.LoadModule(instance, timeout, lm.onUpdate)
		if err != nil {
			lm.logger.Error("Failed to load module",
				zap.String("instance", instance),
				zap.Error(err))
			continue
		}

		interval := lm.moduleManager.PollInterval(instance, lm.config.VME.DefaultPollInterval)
		if err := lm.moduleManager.StartPoller(module.ID, interval); err != nil {
			lm.logger.Error("Failed to start poller",
				zap.String("instance", instance),
				zap.Error(err))
		}
	}

	return nil
}

// onUpdate fans a successful transaction out to WebSocket subscribers and
// the archive worker. Runs on the transaction's goroutine, so it must not
// block: a full archive queue drops the reading.
func (lm *LifecycleManager) onUpdate(u vds.Update) {
	lm.wsHub.Broadcast(websocket.NewParameterUpdateMessage(u))

	select {
	case lm.updates <- u:
	default:
		lm.logger.Warn("Archive queue full, reading dropped",
			zap.String("module", u.Module),
			zap.String("parameter", u.Param))
	}
}

func (lm *LifecycleManager) archiveLoop() {
	defer lm.archiveWG.Done()

	for {
		select {
		case <-lm.archiveStop:
			return
		case u := <-lm.updates:
			r := storage.Reading{
				Module:    u.Module,
				Parameter: u.Param,
				Channel:   u.Channel,
				TakenAt:   u.At,
			}
			if u.Kind == vds.KindDigital {
				d := int64(u.Digital)
				r.Digital = &d
			} else {
				a := u.Analog
				r.Analog = &a
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := lm.storage.InsertReading(ctx, r); err != nil {
				lm.logger.Error("Failed to archive reading",
					zap.String("module", u.Module),
					zap.String("parameter", u.Param),
					zap.Error(err))
			}
			cancel()
		}
	}
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// 1. Stop module manager (pollers & bridge connections)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lm.moduleManager.StopAll(ctx); err != nil {
			errChan <- fmt.Errorf("module manager stop failed: %w", err)
		}
	}()

	// 2. REST API graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		shutdownErr = fmt.Errorf("shutdown timeout exceeded")
	case err := <-errChan:
		shutdownErr = err
	}

	// The archive worker stops on every path, including partial failures.
	close(lm.archiveStop)
	lm.archiveWG.Wait()

	if shutdownErr == nil {
		lm.logger.Info("Graceful shutdown completed")
	}

	return shutdownErr
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub, lm.authService)
	return lm.restServer.Start()
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	if lm.currentState != state {
		if err := ValidateTransition(lm.currentState, state); err != nil {
			lm.logger.Warn("Unexpected state transition",
				zap.String("from", lm.currentState.String()),
				zap.String("to", state.String()))
		}
	}
	lm.currentState = state
	lm.stateMu.Unlock()

	lm.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeSystemStatus, lm.GetCurrentStatus()))
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	modules := lm.moduleManager.ListModules()
	connected := 0
	for _, m := range modules {
		if lm.moduleManager.Connected(m.ID) {
			connected++
		}
	}

	return interfaces.SystemStatus{
		State:            lm.currentState.String(),
		ModuleCount:      len(modules),
		ConnectedModules: connected,
	}
}

// ModuleManager returns the module manager
func (lm *LifecycleManager) ModuleManager() *devices.Manager {
	return lm.moduleManager
}

// Storage returns the storage client
func (lm *LifecycleManager) Storage() *storage.PostgresClient {
	return lm.storage
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}
