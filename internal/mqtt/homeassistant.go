package mqtt

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/valentingc/elero2mqtt/internal/elero/cover"
)

type haDevice struct {
	Identifiers  []string `json:"ids,omitempty"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	Name         string   `json:"name,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
}

type haEntity struct {
	AvailabilityTopic string `json:"avty_t,omitempty"`
	UniqueID          string `json:"uniq_id,omitempty"`
	Name              string `json:"name,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`

	Device haDevice `json:"device,omitempty"`
}

type haCover struct {
	haEntity
	StateTopic          string `json:"stat_t"`
	CommandTopic        string `json:"cmd_t"`
	PositionTopic       string `json:"pos_t"`
	SetPositionTopic    string `json:"set_pos_t,omitempty"`
	TiltStatusTopic     string `json:"tilt_status_t,omitempty"`
	TiltCommandTopic    string `json:"tilt_cmd_t,omitempty"`
	JSONAttributesTopic string `json:"json_attr_t,omitempty"`
	PositionOpen        int    `json:"pos_open"`
	PositionClosed      int    `json:"pos_clsd"`
	PayloadOpen         string `json:"pl_open"`
	PayloadStop         string `json:"pl_stop"`
	PayloadClose        string `json:"pl_cls"`
}

// NewHACoverFromBridge builds the Home Assistant MQTT discovery config for a
// bridged cover. Position and tilt topics are only announced when the channel
// is configured with the matching features.
func NewHACoverFromBridge(bridge *Bridge) haCover {
	c := bridge.Cover()

	entity := haCover{
		haEntity: haEntity{
			AvailabilityTopic: bridge.AvailabilityTopic,
			UniqueID:          c.UniqueID(),
			Name:              c.Name(),
			DeviceClass:       c.DeviceClass(),

			Device: haDevice{
				Identifiers:  []string{c.UniqueID()},
				Manufacturer: "Elero",
				Model:        "Transmitter Stick",
				Name:         c.Name(),
				SWVersion:    "elero2mqtt",
			},
		},
		StateTopic:          bridge.StateTopic,
		CommandTopic:        bridge.CommandTopic,
		PositionTopic:       bridge.PositionTopic,
		JSONAttributesTopic: bridge.AttributesTopic,
		PositionOpen:        cover.PositionOpen,
		PositionClosed:      cover.PositionClosed,
		PayloadOpen:         mqttOpenCmd,
		PayloadStop:         mqttStopCmd,
		PayloadClose:        mqttCloseCmd,
	}

	if c.Supports(cover.FeatureSetPosition) {
		entity.SetPositionTopic = bridge.PositionChangeTopic
	}
	if c.Supports(cover.FeatureSetTiltPosition) {
		entity.TiltStatusTopic = bridge.TiltTopic
		entity.TiltCommandTopic = bridge.TiltChangeTopic
	}

	return entity
}

// PublishHAAutoDiscovery announces the cover on the Home Assistant discovery
// prefix so it shows up without manual configuration.
func PublishHAAutoDiscovery(client paho.Client, discoveryTopicPrefix string, entity haCover) error {
	topic := fmt.Sprintf("%s/cover/elero2mqtt/%s/config", discoveryTopicPrefix, entity.UniqueID)

	payload, err := json.Marshal(entity)
	if err != nil {
		return err
	}

	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}
