package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/logger"
	"github.com/comparteride/circles-backend/pkg/migrate"
)

// dbCommands run against the circles database.
var dbCommands = map[string]func(ctx context.Context, conn *sql.DB, dir, version string) error{
	"up": func(ctx context.Context, conn *sql.DB, dir, _ string) error {
		return migrate.Run(ctx, conn, dir, "up")
	},
	"down": func(ctx context.Context, conn *sql.DB, dir, _ string) error {
		return migrate.Run(ctx, conn, dir, "down")
	},
	"redo": func(ctx context.Context, conn *sql.DB, dir, _ string) error {
		return migrate.Run(ctx, conn, dir, "redo")
	},
	"status": func(ctx context.Context, conn *sql.DB, dir, _ string) error {
		return migrate.Run(ctx, conn, dir, "status")
	},
	"version": func(ctx context.Context, conn *sql.DB, dir, version string) error {
		if version == "" {
			return fmt.Errorf("missing -version")
		}
		return migrate.MigrateToVersion(ctx, conn, dir, version)
	},
}

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	embedded := flag.Bool("embedded", false, "use the migrations compiled into this binary instead of -dir")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	source := *dir
	if *embedded {
		source = ""
	}

	switch *cmd {
	case "create":
		if *embedded {
			exit("create writes to -dir; drop -embedded")
		}
		path, err := migrate.CreateSQLMigration(source, *name)
		if err != nil {
			exit("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		var err error
		if source == "" {
			err = migrate.ValidateEmbedded()
		} else {
			err = migrate.ValidateDir(source)
		}
		if err != nil {
			exit("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	run, ok := dbCommands[*cmd]
	if !ok {
		exit("unknown -cmd value: %s", *cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"dir":      source,
		"embedded": *embedded,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	conn, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to extract sql database", err)
		os.Exit(1)
	}

	logg.Info(ctx, "running migrations")
	if err := run(ctx, conn, source, *version); err != nil {
		logg.Error(ctx, "migration command failed", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "migrations finished")
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
