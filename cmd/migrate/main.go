package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/tripcore/backend/internal/infrastructure/config"
	"github.com/tripcore/backend/internal/infrastructure/logger"
	"github.com/tripcore/backend/internal/infrastructure/migration"
)

const defaultMigrationsDir = "migrations"

const usage = `Tripcore Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate to a specific version
  version               Show current migration version
  force <version>       Force set migration version (clears a dirty state)
  create <name> [desc]  Create a new migration file pair
  list                  List migration files

Flags:
  -path string          Migrations directory (default: embedded SQL, ./migrations for create/list)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  TRIP_DATABASE_HOST, TRIP_DATABASE_PORT, TRIP_DATABASE_USER,
  TRIP_DATABASE_PASSWORD, TRIP_DATABASE_DBNAME, TRIP_DATABASE_SSLMODE`

// dbCommand runs against a live schema
type dbCommand func(m *migration.Migrator, arg string, log *zap.Logger) error

var dbCommands = map[string]dbCommand{
	"up":   func(m *migration.Migrator, _ string, _ *zap.Logger) error { return m.Up() },
	"down": func(m *migration.Migrator, _ string, _ *zap.Logger) error { return m.Down() },
	"step": func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid step count %q", arg)
		}
		return m.Steps(n)
	},
	"goto": func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", arg)
		}
		return m.GoTo(uint(v))
	},
	"force": func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid version %q", arg)
		}
		return m.Force(v)
	},
	"version": func(m *migration.Migrator, _ string, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	},
}

func main() {
	migrationsPath := flag.String("path", "", "Migrations directory (default: SQL embedded in the binary)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	path := *migrationsPath
	if path != "" {
		if path, err = filepath.Abs(path); err != nil {
			log.Fatal("Failed to get absolute path", zap.Error(err))
		}
	}

	switch command {
	case "create", "list":
		dir := path
		if dir == "" {
			dir = defaultMigrationsDir
		}
		if err := runFileCommand(command, dir, args[1:], log); err != nil {
			log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
		}
		return
	}

	run, ok := dbCommands[command]
	if !ok {
		log.Error("Unknown command", zap.String("command", command))
		fmt.Println(usage)
		os.Exit(1)
	}
	log.Info("Migration CLI started", zap.String("command", command), zap.String("migrations_path", displayPath(path)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, path, log)
	if err != nil {
		_ = db.Close()
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	err = run(m, argAt(args, 1), log)
	// closes db as well
	_ = m.Close()
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

// runFileCommand handles the commands that only touch migration files
func runFileCommand(command, dir string, args []string, log *zap.Logger) error {
	if command == "list" {
		names, err := migration.ListMigrations(dir)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			log.Info("No migrations found", zap.String("dir", dir))
		}
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("migration name required: migrate create <name> [description]")
	}
	mf, err := migration.CreateMigration(dir, args[0], argAt(args, 1))
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func displayPath(p string) string {
	if p == "" {
		return "(embedded)"
	}
	return p
}
