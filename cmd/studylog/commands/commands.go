package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/studylog/core/internal/adapters/repository"
	"github.com/studylog/core/internal/application/services"
	"github.com/studylog/core/internal/domain/entities"
	"github.com/studylog/core/internal/domain/stats"
	"github.com/studylog/core/internal/infrastructure/config"
	"github.com/studylog/core/internal/infrastructure/database"
	"github.com/studylog/core/internal/infrastructure/logger"
	"github.com/studylog/core/internal/infrastructure/server"
	"github.com/studylog/core/internal/ports"
)

// Version is set at build time with -ldflags "-X .../commands.Version=..."
var Version = "dev"

// NewRootCommand creates the studylog command tree. Without a subcommand it
// serves, taking an optional port argument.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "studylog [port]",
		Short: "Study time tracker",
		Long: `studylog records daily study minutes per activity into JSON database
files in the data directory and serves a page with totals and charts.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(args)
		},
	}

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewCollectionCommand())
	rootCmd.AddCommand(NewVersionCommand())
	return rootCmd
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [port]",
		Short: "Start the web server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(args)
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Session store migrations",
		Long:  "Manage the schema of the SQL session store (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			if err := prepareSQLite(cfg.Database); err != nil {
				return err
			}
			if err := database.MigrateUp(cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			if err := database.MigrateDown(cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations reverted")
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			version, dirty, err := database.MigrationVersion(cfg.Database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\nDirty: %t\n", version, dirty)
			return nil
		},
	})

	return migrateCmd
}

// NewCollectionCommand creates the database file management commands
func NewCollectionCommand() *cobra.Command {
	collectionCmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"db"},
		Short:   "Manage database files",
	}

	collectionCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List database files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStudyService(func(a *app) error {
				resp, err := a.study.ListCollections(cmd.Context(), "")
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, name := range resp.Databases {
					marker := " "
					if name == resp.Current {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s\n", marker, name)
				}
				return nil
			})
		},
	})

	collectionCmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStudyService(func(a *app) error {
				file, err := a.study.CreateCollection(cmd.Context(), "", args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", filepath.Join(a.store.Dir(), file))
				return nil
			})
		},
	})

	collectionCmd.AddCommand(&cobra.Command{
		Use:   "delete <file>",
		Short: "Delete a database file and move its sessions elsewhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStudyService(func(a *app) error {
				if _, err := a.study.DeleteCollection(cmd.Context(), "", args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	})

	var showFormat string
	showCmd := &cobra.Command{
		Use:   "show [file]",
		Short: "Print totals and percentages of a database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStudyService(func(a *app) error {
				file := a.cfg.Store.DefaultCollection
				if len(args) == 1 {
					file = args[0]
				}
				exists, err := a.store.Exists(cmd.Context(), file)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("%w: %s", entities.ErrCollectionNotFound, file)
				}
				collection, err := a.store.Read(cmd.Context(), file)
				if err != nil && !errors.Is(err, entities.ErrCollectionCorrupt) {
					return err
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
				return printStats(cmd.OutOrStdout(), showFormat, file, collection)
			})
		},
	}
	showCmd.Flags().StringVar(&showFormat, "format", "md", "Output format: md, json")
	collectionCmd.AddCommand(showCmd)

	return collectionCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the studylog version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "studylog %s\n", Version)
		},
	}
}

func printStats(out io.Writer, format, file string, collection *entities.Collection) error {
	summary := stats.Summarize(collection.Entries)

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ports.StatsResponse{Database: file, Stats: summary})
	case "md":
		fmt.Fprintf(out, "## %s (%d entries)\n\n", file, len(collection.Entries))
		fmt.Fprintln(out, "| Category | Minutes | Percentage |")
		fmt.Fprintln(out, "|---|---:|---:|")
		for _, c := range entities.Categories {
			pct, _ := summary.Percentage(c)
			fmt.Fprintf(out, "| %s | %d | %.1f%% |\n", c.Label(), summary.Totals.Get(c), pct)
		}
		fmt.Fprintf(out, "| **Total** | **%d** | |\n", summary.GrandTotal)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// parsePort reads the optional positional port argument
func parsePort(args []string) (int, bool, error) {
	if len(args) == 0 {
		return 0, false, nil
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false, fmt.Errorf("invalid port %q", args[0])
	}
	return port, true, nil
}

func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	port, ok, err := parsePort(args)
	if err != nil {
		return nil, err
	}
	if ok {
		cfg.Server.Port = port
	}
	return cfg, nil
}

// prepareSQLite makes sure the directory of the session database exists
func prepareSQLite(cfg config.DatabaseConfig) error {
	if cfg.Driver != config.DriverSQLite {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create session database directory: %w", err)
	}
	return nil
}

// openSelections builds the configured session store
func openSelections(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (ports.SelectionRepository, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		appLogger.Warn("Using in-memory session store; selections are lost on restart")
		return repository.NewMemorySelectionRepository(), nil

	case config.SessionBackendRedis:
		client, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return repository.NewRedisSelectionRepository(client, cfg.Redis.KeyPrefix, cfg.Session.MaxAge), nil

	default:
		if err := prepareSQLite(cfg.Database); err != nil {
			return nil, err
		}
		if err := database.MigrateUp(cfg.Database); err != nil {
			return nil, err
		}
		db, err := database.New(cfg.Database)
		if err != nil {
			return nil, err
		}
		appLogger.Infow("Session store ready", "driver", cfg.Database.Driver, "pool", db.GetConnectionInfo())
		return repository.NewSQLSelectionRepository(db.DB), nil
	}
}

type app struct {
	cfg        *config.Config
	logger     *logger.Logger
	store      *repository.CollectionRepository
	selections ports.SelectionRepository
	study      *services.StudyService
}

func withStudyService(fn func(a *app) error) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	selections, err := openSelections(context.Background(), cfg, appLogger)
	if err != nil {
		return err
	}
	defer selections.Close()

	store := repository.NewCollectionRepository(cfg.Store.DataDir, cfg.Store.Exclude, appLogger)
	sessions, err := services.NewSessionService(selections, cfg.Session, cfg.Store.DefaultCollection, appLogger)
	if err != nil {
		return err
	}

	return fn(&app{
		cfg:        cfg,
		logger:     appLogger,
		store:      store,
		selections: selections,
		study:      services.NewStudyService(store, sessions, nil, nil, appLogger),
	})
}

func runServer(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	selections, err := openSelections(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer selections.Close()

	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store := repository.NewCollectionRepository(cfg.Store.DataDir, cfg.Store.Exclude, appLogger)

	srv, err := server.New(cfg, store, selections, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	appLogger.Infow("Starting studylog",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"session_backend", cfg.Session.Backend,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.ListenAddr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	appLogger.Info("Server stopped")
	return nil
}
