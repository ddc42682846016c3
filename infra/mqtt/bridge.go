package mqtt

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Tiimber/ev-smart-charger/core/model"
	"github.com/Tiimber/ev-smart-charger/infra/logger"
)

// pahoClient is the subset of the Paho client used by the adapters, extracted
// so tests can substitute a fake.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// SettingsSink receives user mutations arriving over the settings topics.
// The orchestrator implements it.
type SettingsSink interface {
	SetUserInput(key string, value any) error
	ClearManualOverride()
}

// SensorBridge subscribes to the configured sensor topics and maintains the
// latest snapshot. OnChange fires after every accepted sensor update so the
// service can debounce recomputation.
type SensorBridge struct {
	cli pahoClient
	cfg Config
	log logger.Logger

	mu   sync.Mutex
	snap model.SensorData

	onChange func()
	settings SettingsSink
}

// NewSensorBridge connects to the broker and subscribes to all configured
// topics. Subscriptions are re-established on reconnect.
func NewSensorBridge(cfg Config, settings SettingsSink, onChange func()) (*SensorBridge, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt-bridge")
	b := &SensorBridge{cfg: cfg, log: log, onChange: onChange, settings: settings}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		b.subscribeAll(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	b.cli = c
	return b, nil
}

// Snapshot returns a copy of the latest sensor data.
func (b *SensorBridge) Snapshot() model.SensorData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap
}

// Close disconnects from the broker.
func (b *SensorBridge) Close() {
	if b.cli != nil {
		b.cli.Disconnect(250)
	}
}

func (b *SensorBridge) subscribeAll(c pahoClient) {
	qos := b.cfg.qosFor("sensor")
	t := b.cfg.Topics

	numeric := []struct {
		topic string
		set   func(*model.SensorData, float64)
	}{
		{t.GridPhases[0], func(s *model.SensorData, v float64) { s.GridL1 = v }},
		{t.GridPhases[1], func(s *model.SensorData, v float64) { s.GridL2 = v }},
		{t.GridPhases[2], func(s *model.SensorData, v float64) { s.GridL3 = v }},
		{t.ChargerPhases[0], func(s *model.SensorData, v float64) { s.ChargerL1 = v }},
		{t.ChargerPhases[1], func(s *model.SensorData, v float64) { s.ChargerL2 = v }},
		{t.ChargerPhases[2], func(s *model.SensorData, v float64) { s.ChargerL3 = v }},
		{t.LimiterValue, func(s *model.SensorData, v float64) { s.LimiterValue = v }},
	}
	for _, n := range numeric {
		if n.topic == "" {
			continue
		}
		set := n.set
		b.subscribe(c, n.topic, qos, func(_ paho.Client, msg paho.Message) {
			v, ok := parseNumber(msg.Payload())
			if !ok {
				return
			}
			b.update(func(s *model.SensorData) { set(s, v) })
		})
	}

	if t.CarSoC != "" {
		b.subscribe(c, t.CarSoC, qos, func(_ paho.Client, msg paho.Message) {
			if v, ok := parseNumber(msg.Payload()); ok {
				b.update(func(s *model.SensorData) { s.CarSoC = &v })
			} else {
				b.update(func(s *model.SensorData) { s.CarSoC = nil })
			}
		})
	}
	b.subscribe(c, t.Plugged, qos, func(_ paho.Client, msg paho.Message) {
		plugged, known := model.ParsePlugged(string(msg.Payload()))
		if !known {
			b.log.Warnf("unrecognised plug state %q, treating as unplugged", msg.Payload())
		}
		b.update(func(s *model.SensorData) { s.Plugged = plugged })
	})
	if t.Prices != "" {
		b.subscribe(c, t.Prices, qos, func(_ paho.Client, msg paho.Message) {
			var p model.PriceData
			if err := json.Unmarshal(msg.Payload(), &p); err != nil {
				b.log.Errorf("decode price payload: %v", err)
				return
			}
			b.update(func(s *model.SensorData) { s.Prices = p })
		})
	}
	if t.Calendar != "" {
		b.subscribe(c, t.Calendar, qos, func(_ paho.Client, msg paho.Message) {
			var evs []model.CalendarEvent
			if err := json.Unmarshal(msg.Payload(), &evs); err != nil {
				b.log.Errorf("decode calendar payload: %v", err)
				return
			}
			b.update(func(s *model.SensorData) { s.Calendar = evs })
		})
	}

	b.subscribeSettings(c)
}

func (b *SensorBridge) subscribeSettings(c pahoClient) {
	if b.settings == nil {
		return
	}
	qos := b.cfg.qosFor("settings")
	b.subscribe(c, b.cfg.Topics.SettingsSet, qos, func(_ paho.Client, msg paho.Message) {
		var m struct {
			Key   string `json:"key"`
			Value any    `json:"value"`
		}
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			b.log.Errorf("decode settings payload: %v", err)
			return
		}
		if err := b.settings.SetUserInput(m.Key, m.Value); err != nil {
			b.log.Errorf("apply setting %s: %v", m.Key, err)
		}
	})
	b.subscribe(c, b.cfg.Topics.SettingsClear, qos, func(_ paho.Client, _ paho.Message) {
		b.settings.ClearManualOverride()
	})
}

func (b *SensorBridge) subscribe(c pahoClient, topic string, qos byte, h paho.MessageHandler) {
	if token := c.Subscribe(topic, qos, h); token.Wait() && token.Error() != nil {
		b.log.Errorf("subscribe %s: %v", topic, token.Error())
	}
}

func (b *SensorBridge) update(apply func(*model.SensorData)) {
	b.mu.Lock()
	apply(&b.snap)
	b.mu.Unlock()
	if b.onChange != nil {
		b.onChange()
	}
}

// parseNumber parses a plain numeric payload. Sensor placeholders such as
// "unknown" and "unavailable" report ok=false.
func parseNumber(payload []byte) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
