// Package app wires the segmentation pipeline end to end: frame
// extraction, keyframe annotation, mask propagation, and result
// materialization, with run state persisted to the store.
package app

import (
	"go.uber.org/zap"

	"github.com/jmuozan/vidseg/internal/config"
	"github.com/jmuozan/vidseg/internal/oracle"
	"github.com/jmuozan/vidseg/internal/store"
)

// App orchestrates segmentation runs.
type App struct {
	cfg *config.Config
	st  *store.Store
	log *zap.Logger
}

// New creates the application around its configuration and store.
func New(cfg *config.Config, st *store.Store, log *zap.Logger) *App {
	return &App{cfg: cfg, st: st, log: log}
}

// Store returns the backing store.
func (a *App) Store() *store.Store {
	return a.st
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// device builds the primary oracle device from configuration.
func (a *App) device() oracle.Device {
	return oracle.Device{Kind: a.cfg.Device, MixedPrecision: a.cfg.MixedPrecision}
}

// fallbackDevice builds the degraded device used after resource
// exhaustion.
func (a *App) fallbackDevice() oracle.Device {
	return oracle.Device{Kind: a.cfg.FallbackDevice}
}

// newOracle builds the segmentation oracle and the factory used for
// relocation. The real subprocess client is preferred; when its service
// script cannot be found the mock oracle is used so the pipeline stays
// runnable without the model.
func (a *App) newOracle(frameCount int) (oracle.Oracle, oracle.Factory) {
	client, err := oracle.NewClient(oracle.ClientConfig{
		ScriptPath:      a.cfg.ScriptPath,
		CheckpointPath:  a.cfg.CheckpointPath,
		ModelConfigPath: a.cfg.ModelConfigPath,
		Device:          a.device(),
	}, a.log)
	if err == nil {
		a.log.Info("using segmentation service",
			zap.String("device", a.cfg.Device))
		return client, client.ClientFactory()
	}

	a.log.Warn("segmentation service unavailable, using mock oracle", zap.Error(err))
	return oracle.NewMock(frameCount), func(oracle.Device) (oracle.Oracle, error) {
		return oracle.NewMock(frameCount), nil
	}
}
