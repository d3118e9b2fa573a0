package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/Jamolkhon5/nexter/internal/config"
	"github.com/Jamolkhon5/nexter/internal/logger"
	"github.com/Jamolkhon5/nexter/internal/models"
	"github.com/Jamolkhon5/nexter/internal/repository"
)

var (
	configPath string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nexter",
	Short: "Project organizing assistant",
	Long: `nexter hosts the project organizing assistant: a chat that interviews the
user about a project and writes the answers back into the project record.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewConfig(configPath)
		if err != nil {
			return err
		}
		log = logger.New(logger.Config{
			Level:  cfg.LogLevel,
			Pretty: cfg.LogPretty,
		})
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		repo := repository.NewRepository(db)
		if err := repo.Migrate(cmd.Context()); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.StoreDriver).Msg("tables created")

		title, _ := cmd.Flags().GetString("seed")
		if title == "" {
			return nil
		}
		project, err := repo.CreateProject(cmd.Context(), models.Project{Title: title})
		if err != nil {
			return err
		}
		log.Info().Int64("project_id", project.ID).Str("title", project.Title).Msg("project seeded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".env", "path to the env-format config file")
	migrateCmd.Flags().String("seed", "", "also create an empty project with this title")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func openDB(ctx context.Context) (*sqlx.DB, error) {
	driver, dsn := cfg.StoreDriver, cfg.SQLitePath
	if driver == config.DriverPostgres {
		dsn = cfg.PostgresDSN()
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == config.DriverSQLite {
		// sqlite allows one writer
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
