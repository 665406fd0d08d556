// File: cmd/migrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"

	"restaurant-saas/internal/config"
	"restaurant-saas/internal/infra/db/migrations"
	"restaurant-saas/internal/infra/logging"
)

const usage = `usage: migrate [-config config.yaml] <command>

commands:
  up          apply all pending migrations
  down [N]    roll back N migrations (default 1)
  goto V      migrate up or down to version V
  force V     set the version without running SQL (repairs a dirty schema)
  status      print the current version`

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	m, err := migrations.New(cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	defer m.Close()

	if err := run(m, args); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("no change")
			return
		}
		logger.Fatal().Err(err).Str("command", args[0]).Msg("migrate failed")
	}
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info().Msg("no migrations applied")
	case err != nil:
		logger.Fatal().Err(err).Msg("read version")
	default:
		logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
	}
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		n := 1
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v <= 0 {
				return fmt.Errorf("down: invalid step count %q", args[1])
			}
			n = v
		}
		return m.Steps(-n)
	case "goto":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		return m.Migrate(uint(v))
	case "force":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	case "status":
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func versionArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s: version required", args[0])
	}
	v, err := strconv.Atoi(args[1])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s: invalid version %q", args[0], args[1])
	}
	return v, nil
}
