// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"av-control-service/internal/driver/kramer"
	"av-control-service/internal/driver/nec"
	"av-control-service/internal/driver/pjlink"
	"av-control-service/internal/driver/samsung"
	"av-control-service/internal/model"
)

// RegisterDefaultDrivers registers all default device drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registerProjectorDrivers(registry, logger)
	registerSwitcherDrivers(registry, logger)
	registerTVDrivers(registry, logger)
}

// registerProjectorDrivers registers NEC and PJLink projector drivers
func registerProjectorDrivers(registry *Registry, logger *zap.Logger) {
	// Any NEC projector speaks the same binary command set
	registry.Register(
		model.BrandNEC,
		model.DeviceTypeProjector,
		"*",
		nec.NewProjectorDriver,
	)

	// PJLink class 1 covers most other projector brands
	registry.Register(
		model.BrandPJLink,
		model.DeviceTypeProjector,
		"*",
		pjlink.NewProjectorDriver,
	)

	logger.Info("Projector drivers registered", zap.Int("families", 2))
}

// registerSwitcherDrivers registers Kramer switcher drivers
func registerSwitcherDrivers(registry *Registry, logger *zap.Logger) {
	// Protocol 3000 matrix switchers (VS-42, VS-62, ...)
	registry.Register(
		model.BrandKramer,
		model.DeviceTypeSwitcher,
		"*",
		kramer.NewP3000Driver,
	)

	// The VP-734 scaler speaks its own notification protocol
	registry.Register(
		model.BrandKramer,
		model.DeviceTypeSwitcher,
		"VP-734",
		kramer.NewVP734Driver,
	)

	logger.Info("Switcher drivers registered", zap.Int("families", 2))
}

// registerTVDrivers registers Samsung ExLink TV drivers
func registerTVDrivers(registry *Registry, logger *zap.Logger) {
	registry.Register(
		model.BrandSamsung,
		model.DeviceTypeTV,
		"*",
		samsung.NewExLinkDriver,
	)

	logger.Info("TV drivers registered", zap.Int("families", 1))
}
