package mqtt

import (
	"context"
	"strconv"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Tiimber/ev-smart-charger/infra/logger"
)

// Controller publishes charger commands on the configured command topics.
// Commands are retained so the charger integration picks up the last known
// setpoint after its own reconnect.
type Controller struct {
	cli pahoClient
	cfg Config
	log logger.Logger
}

// NewController builds a Controller on top of the bridge's broker connection.
func NewController(b *SensorBridge) *Controller {
	return &Controller{cli: b.cli, cfg: b.cfg, log: logger.New("mqtt-controller")}
}

// SetEnabled switches the charger on or off.
func (c *Controller) SetEnabled(ctx context.Context, on bool) error {
	payload := "OFF"
	if on {
		payload = "ON"
	}
	return c.publish(ctx, c.cfg.Topics.ChargerEnable, payload, true)
}

// SetCurrentLimit sets the charger current limiter in amps.
func (c *Controller) SetCurrentLimit(ctx context.Context, amps int) error {
	return c.publish(ctx, c.cfg.Topics.ChargerCurrent, strconv.Itoa(amps), true)
}

// SetCarChargeLimit sets the car-side charge limit in percent.
func (c *Controller) SetCarChargeLimit(ctx context.Context, percent int) error {
	return c.publish(ctx, c.cfg.Topics.CarChargeLimit, strconv.Itoa(percent), true)
}

// RequestCarRefresh asks the vehicle integration to push fresh telemetry.
func (c *Controller) RequestCarRefresh(ctx context.Context) error {
	return c.publish(ctx, c.cfg.Topics.CarRefresh, "REFRESH", false)
}

func (c *Controller) publish(ctx context.Context, topic, payload string, retained bool) error {
	token := c.cli.Publish(topic, c.cfg.qosFor("command"), retained, payload)
	if err := waitToken(ctx, token); err != nil {
		c.log.Errorf("publish %s: %v", topic, err)
		return err
	}
	return nil
}

// waitToken waits for token completion or context cancellation, whichever
// comes first.
func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
