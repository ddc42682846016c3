package mqtt

import (
	"context"
	"encoding/json"

	"github.com/Tiimber/ev-smart-charger/core/charger"
	"github.com/Tiimber/ev-smart-charger/infra/logger"
)

// PlanPublisher exposes the latest cycle outcome as retained JSON state so
// dashboards and the host automation see the current plan without polling.
type PlanPublisher struct {
	cli pahoClient
	cfg Config
	log logger.Logger
}

// NewPlanPublisher builds a publisher on top of the bridge's broker connection.
func NewPlanPublisher(b *SensorBridge) *PlanPublisher {
	return &PlanPublisher{cli: b.cli, cfg: b.cfg, log: logger.New("mqtt-plan")}
}

// planState is the published document: the plan itself plus the per-cycle
// context users care about.
type planState struct {
	ShouldChargeNow bool    `json:"should_charge_now"`
	AvailableAmps   float64 `json:"available_amps"`
	VirtualSoC      float64 `json:"virtual_soc"`
	PriceStatus     string  `json:"price_status"`
	CommandedAmps   float64 `json:"commanded_amps"`
	State           string  `json:"state"`

	Plan any `json:"plan"`
}

// Publish sends the cycle result on the plan state topic.
func (p *PlanPublisher) Publish(ctx context.Context, res charger.CycleResult) error {
	doc := planState{
		ShouldChargeNow: res.Plan.ShouldChargeNow,
		AvailableAmps:   res.AvailableAmps,
		VirtualSoC:      res.VirtualSoC,
		PriceStatus:     res.PriceStatus,
		CommandedAmps:   res.CommandedAmps,
		State:           res.State.String(),
		Plan:            res.Plan,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	token := p.cli.Publish(p.cfg.Topics.PlanState, p.cfg.qosFor("state"), true, payload)
	if err := waitToken(ctx, token); err != nil {
		p.log.Errorf("publish plan: %v", err)
		return err
	}
	return nil
}
