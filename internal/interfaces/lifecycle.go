package interfaces

import (
	"context"

	"github.com/fweiler/OpenSupplyCore/internal/config"
	"github.com/fweiler/OpenSupplyCore/internal/devices"
	"github.com/fweiler/OpenSupplyCore/internal/storage"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	ModuleCount      int    `json:"module_count"`
	ConnectedModules int    `json:"connected_modules"`
}

type LifecycleManager interface {
	Config() *config.Config
	Storage() *storage.PostgresClient
	ModuleManager() *devices.Manager
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
