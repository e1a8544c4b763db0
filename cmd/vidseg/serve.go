package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmuozan/vidseg/internal/app"
	"github.com/jmuozan/vidseg/internal/server"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the runs API and result streams over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().String("static", "", "Directory of static files to serve at /")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = e.cfg.ServerAddr
	}
	staticDir, _ := cmd.Flags().GetString("static")

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     e.st,
		App:       app.New(e.cfg, e.st, e.log),
		Log:       e.log,
	})

	e.log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(addr); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
