package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/BaSui01/postflow/internal/migration"
	"go.uber.org/zap"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate 解析通用参数后交给 migration.CLI 分发子命令
func runMigrate(args []string) error {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage()
		return nil
	}

	sub := args[0]
	fs := flag.NewFlagSet("migrate "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return err
	}
	defer migrator.Close()

	// goto / force 的版本号在 flag 之后
	return migration.NewCLI(migrator).Run(context.Background(), append([]string{sub}, fs.Args()...))
}

// createMigrator 优先使用 --db-type 与 --db-url，否则读取配置
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	logger := zap.NewNop()
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL, logger)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	logger = initLogger(cfg.Log)
	return migration.NewMigratorFromConfig(cfg, logger)
}

func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  postflow migrate <subcommand> [options] [version]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show migration status
  version   Show current migration version
  info      Show migration details
  goto      Migrate to a specific version
  force     Force set migration version (use with caution)
  reset     Rollback all migrations
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  postflow migrate up
  postflow migrate up --config /etc/postflow/config.yaml
  postflow migrate status
  postflow migrate goto 1
  postflow migrate force --db-type sqlite --db-url file:postflow.db 0
  postflow migrate reset`)
}
