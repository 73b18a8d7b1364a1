package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/valentingc/elero2mqtt/internal/elero/cover"
)

const (
	mqttOpenCmd  = "open"
	mqttCloseCmd = "close"
	mqttStopCmd  = "stop"

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Bridge exposes one cover channel over MQTT: state, position, tilt and
// attribute topics out, command topics in. The retained attributes topic
// doubles as the restart persistence for the cover's restorable state.
type Bridge struct {
	mqtt  mqtt.Client
	cover *cover.Cover

	StateTopic        string
	PositionTopic     string
	TiltTopic         string
	AttributesTopic   string
	AvailabilityTopic string

	CommandTopic        string
	PositionChangeTopic string
	TiltChangeTopic     string
}

func NewBridge(client mqtt.Client, c *cover.Cover) *Bridge {
	b := &Bridge{mqtt: client, cover: c}
	b.StateTopic = fmt.Sprintf("elero2mqtt/%s/state", c.Name())
	b.PositionTopic = fmt.Sprintf("elero2mqtt/%s/position", c.Name())
	b.TiltTopic = fmt.Sprintf("elero2mqtt/%s/tilt", c.Name())
	b.AttributesTopic = fmt.Sprintf("elero2mqtt/%s/attributes", c.Name())
	b.AvailabilityTopic = fmt.Sprintf("elero2mqtt/%s/availability", c.Name())
	b.CommandTopic = fmt.Sprintf("elero2mqtt/%s/set", c.Name())
	b.PositionChangeTopic = fmt.Sprintf("elero2mqtt/%s/position/set", c.Name())
	b.TiltChangeTopic = fmt.Sprintf("elero2mqtt/%s/tilt/set", c.Name())

	b.restoreAttributes()

	c.OnUpdate(b.onCoverUpdate)

	return b
}

func (b *Bridge) Cover() *cover.Cover {
	return b.cover
}

// Subscribe wires the command topics and announces availability. Topics are
// unsubscribed when the context is cancelled.
func (b *Bridge) Subscribe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if token := b.mqtt.Unsubscribe(b.CommandTopic, b.PositionChangeTopic, b.TiltChangeTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT topics unsubscribe failed: %s", b.cover.Name(), token.Error())
		}
		if token := b.mqtt.Publish(b.AvailabilityTopic, 0, true, payloadOffline); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT availability publish failed: %s", b.cover.Name(), token.Error())
		}
	}()

	if token := b.mqtt.Subscribe(b.CommandTopic, 0, b.onCommand); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT command topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT command topic subscribed", b.cover.Name())

	if token := b.mqtt.Subscribe(b.PositionChangeTopic, 0, b.onPositionChange); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT position change topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT position change topic subscribed", b.cover.Name())

	if token := b.mqtt.Subscribe(b.TiltChangeTopic, 0, b.onTiltChange); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT tilt change topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT tilt change topic subscribed", b.cover.Name())

	availability := payloadOnline
	if !b.cover.Available() {
		availability = payloadOffline
	}
	if token := b.mqtt.Publish(b.AvailabilityTopic, 0, true, availability); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT availability publish failed", b.cover.Name())
	}

	return nil
}

// StartPolling asks the cover for a fresh status on every tick so motion
// triggered by other remotes is observed too.
func (b *Bridge) StartPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.cover.Update()
			}
		}
	}()
}

func (b *Bridge) onCoverUpdate(u cover.Update) {
	b.publish(b.StateTopic, u.State)
	if u.Position != nil {
		b.publish(b.PositionTopic, strconv.Itoa(*u.Position))
	}
	if u.TiltPosition != nil {
		b.publish(b.TiltTopic, strconv.Itoa(*u.TiltPosition))
	}

	payload, err := json.Marshal(u.Attributes)
	if err != nil {
		logrus.Errorf("%s: attributes marshal failed: %s", b.cover.Name(), err)
		return
	}
	b.publish(b.AttributesTopic, string(payload))
}

func (b *Bridge) publish(topic, payload string) {
	if token := b.mqtt.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT publish to %s failed: %s", b.cover.Name(), topic, token.Error())
	}
}

func (b *Bridge) onCommand(_ mqtt.Client, msg mqtt.Message) {
	cmd := string(msg.Payload())
	switch cmd {
	case mqttOpenCmd:
		b.cover.Open()
	case mqttCloseCmd:
		b.cover.Close()
	case mqttStopCmd:
		b.cover.Stop()
	default:
		logrus.Errorf("%s: MQTT unsupported %s command received", b.cover.Name(), cmd)
	}
}

func (b *Bridge) onPositionChange(_ mqtt.Client, msg mqtt.Message) {
	pos, err := strconv.Atoi(string(msg.Payload()))
	if err != nil {
		logrus.Errorf("%s: MQTT position payload: %s", b.cover.Name(), err)
		return
	}
	if err := b.cover.SetPosition(pos); err != nil {
		logrus.Error(err)
	}
}

func (b *Bridge) onTiltChange(_ mqtt.Client, msg mqtt.Message) {
	pos, err := strconv.Atoi(string(msg.Payload()))
	if err != nil {
		logrus.Errorf("%s: MQTT tilt payload: %s", b.cover.Name(), err)
		return
	}
	if err := b.cover.SetTiltPosition(pos); err != nil {
		logrus.Error(err)
	}
}

// restoreAttributes picks up the retained attribute payload published before
// the last shutdown and applies it to the cover, then unsubscribes.
func (b *Bridge) restoreAttributes() {
	var once sync.Once
	restoreHandler := func(_ mqtt.Client, msg mqtt.Message) {
		once.Do(func() {
			// Unsubscribe first: applying the snapshot re-publishes the
			// retained attributes and must not loop back in.
			if token := b.mqtt.Unsubscribe(b.AttributesTopic); token.Wait() && token.Error() != nil {
				logrus.Errorf("%s: MQTT attributes restore topic unsubscribe failed: %s", b.cover.Name(), token.Error())
			}

			var snapshot cover.Snapshot
			if err := json.Unmarshal(msg.Payload(), &snapshot); err != nil {
				logrus.Errorf("%s: MQTT attributes restore failed: %s", b.cover.Name(), err)
				return
			}

			b.cover.RestoreSnapshot(snapshot)
			logrus.Infof("%s: MQTT attributes restored", b.cover.Name())
		})
	}

	if token := b.mqtt.Subscribe(b.AttributesTopic, 0, restoreHandler); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT attributes restore topic subscription failed: %s", b.cover.Name(), token.Error())
	}
}
