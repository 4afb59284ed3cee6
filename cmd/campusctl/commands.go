package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/repository"
	"github.com/noah-isme/campus-ops-api/internal/service"
	"github.com/noah-isme/campus-ops-api/pkg/config"
	"github.com/noah-isme/campus-ops-api/pkg/database"
	"github.com/noah-isme/campus-ops-api/pkg/logger"
)

// env carries what every subcommand needs once the root command has loaded
// configuration.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	openDB func() (*sqlx.DB, error)
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "campusctl",
		Short:         "Operator tasks for the campus operations API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			e.cfg = cfg
			e.logger = logr
			e.openDB = func() (*sqlx.DB, error) { return database.NewPostgres(cfg.Database) }
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	root.AddCommand(
		newMigrateCmd(e),
		newSweepCmd(e),
		newImportUsageCmd(e),
		newExportUsageCmd(e),
	)
	return root
}

func newMigrateCmd(e *env) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			applied, err := database.Migrate(cmd.Context(), db, dir)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory holding *.sql migrations")
	return cmd
}

func newSweepCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete library bookings whose slot has ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			svc := newLibraryService(db, e)
			result, err := svc.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d booking(s)\n", result.Expired)
			return nil
		},
	}
}

func newImportUsageCmd(e *env) *cobra.Command {
	var (
		file        string
		submitterID string
	)
	cmd := &cobra.Command{
		Use:   "import-usage",
		Short: "Import hostel usage readings from a CSV or XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			defer f.Close() //nolint:errcheck

			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			result, err := newUsageService(db, e).Import(cmd.Context(), submitterID, filepath.Base(file), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, skipped %d, alerts %d\n", result.Processed, result.Skipped, result.Alerts)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the CSV or XLSX file")
	cmd.Flags().StringVar(&submitterID, "submitter", "", "user id recorded as the submitter")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportUsageCmd(e *env) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export-usage",
		Short: "Write the resource usage report to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			data, filename, _, err := newUsageService(db, e).Export(cmd.Context(), strings.ToLower(format))
			if err != nil {
				return err
			}
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "xlsx", "csv, xlsx or pdf")
	cmd.Flags().StringVar(&out, "out", "", "output path (defaults to the report file name)")
	return cmd
}

// The CLI runs without Redis or the realtime hub: caches are disabled and
// alerts are stored without being pushed.
func newUsageService(db *sqlx.DB, e *env) *service.UsageService {
	users := repository.NewUserRepository(db)
	alerts := service.NewAlertService(repository.NewAlertRepository(db), nil, nil, nil, nil, e.logger)
	return service.NewUsageService(repository.NewUsageRepository(db), alerts, users, nil, nil, e.logger, e.cfg.Location(), e.cfg.Dashboard.CacheTTL)
}

func newLibraryService(db *sqlx.DB, e *env) *service.LibraryService {
	return service.NewLibraryService(repository.NewLibraryRepository(db), repository.NewUserRepository(db), nil, nil, nil, nil, e.logger, service.LibraryConfig{
		SweepInterval:   e.cfg.Library.SweepInterval,
		DefaultDuration: e.cfg.Library.DefaultDuration,
		MaxDuration:     e.cfg.Library.MaxDuration,
	})
}
