package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiimber/ev-smart-charger/config"
	"github.com/Tiimber/ev-smart-charger/core/loadbalance"
	"github.com/Tiimber/ev-smart-charger/core/model"
	"github.com/Tiimber/ev-smart-charger/core/planner"
	"github.com/Tiimber/ev-smart-charger/core/pricing"
	"github.com/Tiimber/ev-smart-charger/infra/logger"
)

var snapshotPath string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute one plan from a sensor snapshot without touching the charger",
	RunE:  planOnce,
}

func init() {
	planCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "sensor snapshot JSON file")
	_ = planCmd.MarkFlagRequired("snapshot")
	rootCmd.AddCommand(planCmd)
}

// planSnapshot is the input document for the one-shot plan command: a sensor
// snapshot plus the state the orchestrator would normally carry.
type planSnapshot struct {
	Now             *time.Time          `json:"now"`
	VirtualSoC      float64             `json:"virtual_soc"`
	Sensors         model.SensorData    `json:"sensors"`
	Settings        *model.UserSettings `json:"settings"`
	ManualOverride  bool                `json:"manual_override"`
	OverloadMinutes float64             `json:"overload_minutes"`
}

func planOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	raw, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap planSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	now := time.Now()
	if snap.Now != nil {
		now = *snap.Now
	}
	settings, err := cfg.Defaults.UserSettings()
	if err != nil {
		return err
	}
	if snap.Settings != nil {
		settings = *snap.Settings
	}

	plan := planner.Generate(planner.Input{
		Now:             now,
		Sensors:         snap.Sensors,
		CurrentSoC:      snap.VirtualSoC,
		Settings:        settings,
		Config:          cfg.Charger,
		ManualOverride:  snap.ManualOverride,
		OverloadMinutes: snap.OverloadMinutes,
	}, logger.New("plan-command"))

	out := struct {
		Plan          model.Plan `json:"plan"`
		AvailableAmps float64    `json:"available_amps"`
		PriceStatus   string     `json:"price_status"`
	}{
		Plan:          plan,
		AvailableAmps: loadbalance.Available(snap.Sensors, cfg.Charger.MaxFuse),
		PriceStatus:   pricing.Analyze(snap.Sensors.Prices.Today, now),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
