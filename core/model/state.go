package model

// ApplyState is the last charger state this controller commanded. It is a
// closed set; transitions happen only in the plan orchestrator.
type ApplyState int

const (
	// StatePaused means the charger was told to stop drawing current.
	StatePaused ApplyState = iota
	// StateCharging means the charger was told to charge at the commanded
	// current limit.
	StateCharging
	// StateMaintenance means the target SoC is reached and the charger idles
	// at 0A, topping up only in very cheap slots.
	StateMaintenance
)

func (s ApplyState) String() string {
	switch s {
	case StateCharging:
		return "charging"
	case StateMaintenance:
		return "maintenance"
	default:
		return "paused"
	}
}
