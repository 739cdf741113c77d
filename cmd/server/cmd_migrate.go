package main

import (
	"fmt"

	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/infrastructure/database"
	Logger "apex-http-service/pkg/logger"

	"github.com/spf13/cobra"
)

var migrateMode string

// migrateCmd 只执行数据库迁移
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations.

Modes:
  auto  - only add new tables and columns (default)
  alter - also change column types and drop stale columns
  drop  - drop and recreate every table`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		switch migrateMode {
		case database.MigrateAuto, database.MigrateAlter, database.MigrateDrop:
		default:
			return fmt.Errorf("unsupported migration mode %q", migrateMode)
		}

		cfg, err := bootstrap("apex-migrate")
		if err != nil {
			return err
		}
		defer Logger.Sync()

		pool, err := openDatabase(cfg, migrateMode)
		if err != nil {
			return err
		}
		defer pool.Close()

		Logger.Info("数据库迁移完成 (mode=%s)", migrateMode)
		return nil
	},
}

// seedAdminCmd 创建默认超级管理员
var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the default super administrator if none exists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := bootstrap("apex-seed")
		if err != nil {
			return err
		}
		defer Logger.Sync()

		pool, err := openDatabase(cfg, database.MigrateAuto)
		if err != nil {
			return err
		}
		defer pool.Close()

		c := container.NewServiceContainer(pool, cfg)
		defer c.Close()
		return seedAdmin(cmd.Context(), c)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateMode, "mode", database.MigrateAuto, "migration mode: auto, alter or drop")
}
