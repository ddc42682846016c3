package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiimber/ev-smart-charger/config"
	"github.com/Tiimber/ev-smart-charger/infra/store"
)

var reportsSince time.Duration

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List finished charging session reports",
	RunE:  listReports,
}

func init() {
	reportsCmd.Flags().DurationVar(&reportsSince, "since", 30*24*time.Hour, "report age cutoff")
	rootCmd.AddCommand(reportsCmd)
}

func listReports(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("no store path configured")
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	reports, err := st.Reports(time.Now().Add(-reportsSince))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
