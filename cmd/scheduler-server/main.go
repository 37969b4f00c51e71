package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/medsched/scheduler/internal/config"
	"github.com/medsched/scheduler/internal/domain/appointment"
	"github.com/medsched/scheduler/internal/domain/directory"
	"github.com/medsched/scheduler/internal/platform/db"
	"github.com/medsched/scheduler/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "scheduler-server",
		Short:         "Appointment scheduling API server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "Extra .env files to load before reading the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(availabilityCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(cfg, migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending Postgres migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StorePostgres {
				fmt.Printf("STORE_DRIVER=%s manages its own schema; nothing to do.\n", cfg.StoreDriver)
				return nil
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StorePostgres {
				fmt.Printf("STORE_DRIVER=%s has no versioned migrations.\n", cfg.StoreDriver)
				return nil
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					appliedAt = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})
	return cmd
}

func availabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print a doctor's slots for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, _ := cmd.Flags().GetString("doctor")
			rawDate, _ := cmd.Flags().GetString("date")
			date, err := time.Parse(time.DateOnly, rawDate)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := directory.Load(cfg.ClinicFile)
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			ctrl := appointment.NewController(st.repo, dir)
			slots, err := ctrl.Availability(ctx, cliCaller, doctorID, date)
			if err != nil {
				return err
			}
			printSlots(cmd, slots)
			return nil
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date as YYYY-MM-DD")
	cmd.MarkFlagRequired("doctor")
	cmd.MarkFlagRequired("date")
	return cmd
}

// cliCaller is the identity of operator commands run on the server host.
var cliCaller = appointment.Caller{UserID: "cli", IsAdministrativeStaff: true}

func printSlots(cmd *cobra.Command, slots []appointment.Slot) {
	out := cmd.OutOrStdout()
	if len(slots) == 0 {
		fmt.Fprintln(out, "No working hours on this date.")
		return
	}
	fmt.Fprintf(out, "%-6s %-6s %-10s %s\n", "START", "END", "STATUS", "REASON")
	for _, s := range slots {
		status := "free"
		if !s.Available {
			status = "taken"
		}
		fmt.Fprintf(out, "%-6s %-6s %-10s %s\n", s.Start.Format("15:04"), s.End.Format("15:04"), status, s.Reason)
	}
}
