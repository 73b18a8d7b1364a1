package main

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/valentingc/elero2mqtt/internal/elero"
	"github.com/valentingc/elero2mqtt/internal/elero/cover"
	"github.com/valentingc/elero2mqtt/internal/mqtt"
	"gopkg.in/yaml.v2"
)

type cfgTransmitter struct {
	SerialNumber string `yaml:"serial_number"`
	Kind         string `yaml:"kind" default:"simulator"`

	// Simulated full travel, only used by the simulator kind.
	SimulatedTravel time.Duration `yaml:"simulated_travel" default:"10s"`
}

type cfgCover struct {
	Name                    string   `yaml:"name"`
	Channel                 int      `yaml:"channel"`
	TransmitterSerialNumber string   `yaml:"transmitter_serial_number"`
	DeviceClass             string   `yaml:"device_class"`
	SupportedFeatures       []string `yaml:"supported_features"`
	TravelTime              float64  `yaml:"travel_time" default:"50"`
}

type cfgMQTT struct {
	ClientID string `yaml:"client_id" default:"elero2mqtt" env:"CLIENT_ID"`
	Broker   string `yaml:"broker" default:"127.0.0.1:1883" env:"BROKER"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type cfgHASS struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	TopicPrefix string `yaml:"topic_prefix" default:"homeassistant" env:"TOPIC_PREFIX"`
}

var Cfg struct {
	LogLevel string `yaml:"log_level" default:"info" env:"LOG_LEVEL"`

	MQTT cfgMQTT `yaml:"mqtt" env:"MQTT"`
	HASS cfgHASS `yaml:"hass" env:"HASS"`

	PollInterval time.Duration `yaml:"poll_interval" default:"30s" env:"POLL_INTERVAL"`

	Transmitters []cfgTransmitter `yaml:"transmitters"`
	Covers       []cfgCover       `yaml:"covers"`
}

var configLoader = aconfig.LoaderFor(&Cfg, aconfig.Config{
	EnvPrefix: "E2M",
})

func loadConfigFromYamlFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		logrus.Error(err)
		return
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&Cfg); err != nil {
		logrus.Fatal(err)
	}
}

func pahoOptsFromConfig() *paho.ClientOptions {
	return paho.NewClientOptions().
		SetClientID(Cfg.MQTT.ClientID).
		AddBroker(Cfg.MQTT.Broker).
		SetUsername(Cfg.MQTT.Username).
		SetPassword(Cfg.MQTT.Password).
		SetConnectTimeout(time.Second).
		SetPingTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetAutoReconnect(true)
}

// registryFromConfig builds the transmitter registry owned by this process.
func registryFromConfig() *elero.Registry {
	registry := elero.NewRegistry()

	for _, cfg := range Cfg.Transmitters {
		if cfg.SerialNumber == "" {
			logrus.Fatal("transmitter serial_number is required")
		}

		switch cfg.Kind {
		case "simulator":
			registry.Register(elero.NewSimulator(cfg.SerialNumber, cfg.SimulatedTravel))
		default:
			logrus.Fatalf("%s is not a supported transmitter kind", cfg.Kind)
		}
	}

	return registry
}

// bridgesFromConfig builds a cover and its MQTT bridge per configured
// channel. A misconfigured channel is skipped, the rest keep running.
func bridgesFromConfig(client paho.Client, registry *elero.Registry) (bridges []*mqtt.Bridge) {
	for _, cfg := range Cfg.Covers {
		transmitter := registry.Get(cfg.TransmitterSerialNumber)
		if transmitter == nil {
			logrus.Errorf("the transmitter %q of the %d - %q channel is a non-existent transmitter",
				cfg.TransmitterSerialNumber, cfg.Channel, cfg.Name)
			continue
		}

		travelTime := time.Duration(cfg.TravelTime * float64(time.Second))
		c, err := cover.New(transmitter, cfg.Name, cfg.Channel, cfg.DeviceClass, cfg.SupportedFeatures, travelTime)
		if err != nil {
			logrus.Errorf("cover not created: %s", err)
			continue
		}

		bridges = append(bridges, mqtt.NewBridge(client, c))
	}

	return bridges
}
