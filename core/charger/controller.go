package charger

import "context"

// Controller is the actuation collaborator: it translates plan decisions
// into on/off, current-limit and car-side commands. Implementations live
// under infra; timeouts are their responsibility.
type Controller interface {
	// SetEnabled switches the charger on or off.
	SetEnabled(ctx context.Context, on bool) error
	// SetCurrentLimit sets the charger current limiter in amps.
	SetCurrentLimit(ctx context.Context, amps int) error
	// SetCarChargeLimit sets the car-side charge limit in percent.
	SetCarChargeLimit(ctx context.Context, percent int) error
	// RequestCarRefresh asks the vehicle integration to push fresh telemetry.
	RequestCarRefresh(ctx context.Context) error
}

// NopController implements Controller with no-op methods. Used in tests and
// by the one-shot plan command.
type NopController struct{}

func (NopController) SetEnabled(context.Context, bool) error       { return nil }
func (NopController) SetCurrentLimit(context.Context, int) error   { return nil }
func (NopController) SetCarChargeLimit(context.Context, int) error { return nil }
func (NopController) RequestCarRefresh(context.Context) error      { return nil }
