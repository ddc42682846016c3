// Package mqtt adapts the control loop to an MQTT broker: the sensor bridge
// maintains the latest sensor snapshot from subscribed topics, and the
// controller publishes charger commands.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Topics lists the broker topics the service subscribes to and publishes on.
// Empty sensor topics are simply not subscribed.
type Topics struct {
	GridPhases    [3]string `json:"grid_phases"`
	ChargerPhases [3]string `json:"charger_phases"`
	LimiterValue  string    `json:"limiter_value"`
	CarSoC        string    `json:"car_soc"`
	Plugged       string    `json:"plugged"`
	Prices        string    `json:"prices"`
	Calendar      string    `json:"calendar"`

	SettingsSet   string `json:"settings_set"`
	SettingsClear string `json:"settings_clear"`

	ChargerEnable  string `json:"charger_enable"`
	ChargerCurrent string `json:"charger_current"`
	CarChargeLimit string `json:"car_charge_limit"`
	CarRefresh     string `json:"car_refresh"`

	PlanState string `json:"plan_state"`
}

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	Topics     Topics          `json:"topics"`
	TLSConfig  *tls.Config     `json:"-"`
}

// SetDefaults fills in client identity and topic defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "ev-smart-charger"
	}
	t := &c.Topics
	if t.SettingsSet == "" {
		t.SettingsSet = "evsc/settings/set"
	}
	if t.SettingsClear == "" {
		t.SettingsClear = "evsc/settings/clear_override"
	}
	if t.ChargerEnable == "" {
		t.ChargerEnable = "evsc/charger/enable"
	}
	if t.ChargerCurrent == "" {
		t.ChargerCurrent = "evsc/charger/current_limit"
	}
	if t.CarChargeLimit == "" {
		t.CarChargeLimit = "evsc/car/charge_limit"
	}
	if t.CarRefresh == "" {
		t.CarRefresh = "evsc/car/refresh"
	}
	if t.PlanState == "" {
		t.PlanState = "evsc/plan"
	}
}

// Validate checks mandatory connection fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if c.Topics.Plugged == "" {
		return fmt.Errorf("plugged topic is required")
	}
	return nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// qosFor returns the configured QoS for a topic class, defaulting to 0.
func (c Config) qosFor(class string) byte {
	if q, ok := c.QoS[class]; ok {
		return q
	}
	return 0
}
