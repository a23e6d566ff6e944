package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"study-room/internal/bootstrap"
	"study-room/internal/infra/setup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "study-room",
		Short:         "Study room sessions with realtime participant presence",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe, // 默认执行 serve
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP/WebSocket server and background worker",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE:  runMigrate,
		},
	)
	return root
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	if err := app.Start(); err != nil {
		app.Shutdown()
		return err
	}

	// 设置优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutdown signal received...")

	app.Shutdown()
	return nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	bootstrap.NewLogger(cfg)

	db, err := setup.InitDB(cfg.DB)
	if err != nil {
		return err
	}
	if err := setup.MigrateDB(db); err != nil {
		return err
	}
	logrus.WithField("driver", cfg.DB.Driver).Info("Database migrated")
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
