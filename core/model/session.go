package model

import "time"

// DataPoint is one cycle's telemetry recorded into the active session.
type DataPoint struct {
	Time time.Time `json:"time"`
	SoC  float64   `json:"soc"`
	Amps float64   `json:"amps"`
	// Charging is true if the charger was charging at record time or at any
	// point since the previous recorded point.
	Charging bool `json:"charging"`
	// Price is the fee/VAT adjusted price at record time.
	Price float64 `json:"price"`
	// SensorRefresh marks points where a forced vehicle telemetry refresh
	// was issued, useful when rendering the session graph.
	SensorRefresh bool `json:"soc_sensor_refresh"`
}

// Session is an in-progress charge session, created on plug-in and converted
// to a SessionReport on unplug.
type Session struct {
	ID              string      `json:"id"`
	StartTime       time.Time   `json:"start_time"`
	History         []DataPoint `json:"history"`
	Log             []string    `json:"log"`
	OverloadMinutes float64     `json:"session_overload_minutes"`
}

// SessionReport is the finalised accounting of a charge session.
type SessionReport struct {
	ID              string      `json:"id"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	StartSoC        float64     `json:"start_soc"`
	EndSoC          float64     `json:"end_soc"`
	AddedKWh        float64     `json:"added_kwh"`
	TotalCost       float64     `json:"total_cost"`
	Currency        string      `json:"currency"`
	GraphData       []DataPoint `json:"graph_data"`
	Log             []string    `json:"session_log"`
	OverloadMinutes float64     `json:"overload_prevention_minutes"`
}
