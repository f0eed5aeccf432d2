package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fweiler/OpenSupplyCore/internal/vds"
	"github.com/fweiler/OpenSupplyCore/internal/vme"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the live HV modules of the crate: one VME bridge client and
// one vds.Module per loaded profile, plus the monitor pollers.
type Manager struct {
	loader  *ProfileLoader
	modules map[uuid.UUID]*vds.Module
	clients map[uuid.UUID]*vme.Client
	pollers map[uuid.UUID]*vds.Poller
	mu      sync.RWMutex
	logger  *zap.Logger
}

func NewManager(searchPaths []string, logger *zap.Logger) (*Manager, error) {
	loader, err := NewProfileLoader(searchPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile loader: %w", err)
	}

	return &Manager{
		loader:  loader,
		modules: make(map[uuid.UUID]*vds.Module),
		clients: make(map[uuid.UUID]*vme.Client),
		pollers: make(map[uuid.UUID]*vds.Poller),
		logger:  logger,
	}, nil
}

// LoadModule loads a module profile, connects its bridge and registers the
// module. onUpdate receives every successful transaction of the module.
func (m *Manager) LoadModule(profileName string, defaultTimeout time.Duration, onUpdate func(vds.Update)) (*vds.Module, error) {
	profile, err := m.loader.Load(profileName)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", profileName, err)
	}

	if profile.Disabled {
		return nil, fmt.Errorf("module %s is disabled", profile.Module.Name)
	}

	timeout := defaultTimeout
	if profile.TimeoutMs > 0 {
		timeout = time.Duration(profile.TimeoutMs) * time.Millisecond
	}

	client := vme.NewClient(profile.Bridge.Address, timeout)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect bridge %s: %w", profile.Bridge.Address, err)
	}

	module, err := vds.NewModule(profile.Module.Name, profile.BaseAddr, client, m.logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create module: %w", err)
	}
	if onUpdate != nil {
		module.SetUpdateFunc(onUpdate)
	}

	m.mu.Lock()
	m.modules[module.ID] = module
	m.clients[module.ID] = client
	m.mu.Unlock()

	m.logger.Info("Module loaded",
		zap.String("name", profile.Module.Name),
		zap.String("bridge", profile.Bridge.Address),
		zap.Uint32("base_address", profile.BaseAddr))

	return module, nil
}

// PollInterval returns the module-specific poll interval from the profile,
// or fallback if the profile does not set one.
func (m *Manager) PollInterval(profileName string, fallback time.Duration) time.Duration {
	profile, err := m.loader.Load(profileName)
	if err != nil || profile.PollMs <= 0 {
		return fallback
	}
	return time.Duration(profile.PollMs) * time.Millisecond
}

// StartPoller starts the monitor poller for a module.
func (m *Manager) StartPoller(moduleID uuid.UUID, interval time.Duration) error {
	m.mu.RLock()
	module, exists := m.modules[moduleID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("module not found: %s", moduleID)
	}

	poller := vds.NewPoller(module, interval, m.logger)
	if err := poller.Start(); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}

	m.mu.Lock()
	m.pollers[moduleID] = poller
	m.mu.Unlock()

	return nil
}

// GetModule returns a module by ID.
func (m *Manager) GetModule(moduleID uuid.UUID) (*vds.Module, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	module, exists := m.modules[moduleID]
	return module, exists
}

// GetModuleByName returns a module by its instance name.
func (m *Manager) GetModuleByName(name string) (*vds.Module, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, module := range m.modules {
		if module.Name == name {
			return module, true
		}
	}

	return nil, false
}

// Connected reports whether the module's bridge connection is up.
func (m *Manager) Connected(moduleID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, exists := m.clients[moduleID]
	return exists && client.Connected()
}

// StopAll stops all pollers and closes all bridge connections.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, poller := range m.pollers {
		poller.Stop()
	}

	for id, client := range m.clients {
		if err := client.Close(); err != nil {
			m.logger.Error("Failed to close bridge connection",
				zap.String("module", m.modules[id].Name),
				zap.Error(err))
		}
	}

	return nil
}

// ListModules returns all loaded modules.
func (m *Manager) ListModules() []*vds.Module {
	m.mu.RLock()
	defer m.mu.RUnlock()

	modules := make([]*vds.Module, 0, len(m.modules))
	for _, module := range m.modules {
		modules = append(modules, module)
	}

	return modules
}
