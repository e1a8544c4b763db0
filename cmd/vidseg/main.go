package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"go.uber.org/zap"

	"github.com/jmuozan/vidseg/internal/config"
	"github.com/jmuozan/vidseg/internal/store"
	"github.com/jmuozan/vidseg/pkg/logger"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	rootCmd := NewRootCmd(version)
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

// env bundles the shared dependencies commands bootstrap on demand, so
// help and flag errors never open the database.
type env struct {
	cfg *config.Config
	log *zap.Logger
	st  *store.Store
}

func bootstrap() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &env{cfg: cfg, log: log, st: st}, nil
}

func (e *env) close() {
	e.st.Close()
	e.log.Sync()
}
