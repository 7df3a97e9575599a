package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"staffattendance/internal/config"
	"staffattendance/internal/logger"
	"staffattendance/internal/store"
	"staffattendance/internal/users"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout", TimeFormat: "2006-01-02 15:04:05"})
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	if err := run(cfg, log, args[0], args[1:]); err != nil {
		log.Fatal("command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func run(cfg config.App, log *zap.Logger, command string, args []string) error {
	if command == "create-admin" {
		return createAdmin(cfg, log, args)
	}

	m, err := store.NewMigrator(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	case "force":
		if len(args) < 1 {
			return fmt.Errorf("version required: migrate force <version>")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return m.Force(version)
	}
	printUsage()
	return fmt.Errorf("unknown command %q", command)
}

// createAdmin bootstraps the first administrator account.
func createAdmin(cfg config.App, log *zap.Logger, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: migrate create-admin <email> <password> <full name>")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	svc := users.NewService(users.NewRepository(db.Client), bcrypt.DefaultCost)
	u, err := svc.Create(ctx, users.CreateInput{
		Email:    args[0],
		Password: args[1],
		FullName: args[2],
		Role:     users.RoleAdmin,
	})
	if err != nil {
		return err
	}
	log.Info("administrator created", zap.String("id", u.ID), zap.String("email", u.Email))
	return nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: migrate [flags] <command> [args]

Commands:
  up                                   Apply all pending migrations
  down                                 Roll back all migrations
  version                              Show the applied version
  force <version>                      Set the version without migrating
  create-admin <email> <pass> <name>   Create an administrator account

Flags:
  -log-level string   Log level (debug, info, warn, error) (default "info")
`)
}
