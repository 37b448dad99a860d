package telemetry

import (
	"strconv"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTSink publishes every value to `<prefix>/<key>` with QoS 0. Publishes
// are fire-and-forget: tokens are not waited on, so a slow or disconnected
// broker never stalls the control tick.
type MQTTSink struct {
	client mqtt.Client
	prefix string
}

// NewMQTTSink connects to the broker and returns a sink publishing under the
// given topic prefix.
func NewMQTTSink(broker, clientID, prefix string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	logrus.WithField("broker", broker).Info("telemetry connected to MQTT broker")

	return &MQTTSink{client: client, prefix: prefix}, nil
}

func (s *MQTTSink) WriteString(key, value string) {
	s.client.Publish(s.prefix+"/"+key, 0, false, value)
}

func (s *MQTTSink) WriteDouble(key string, value float64) {
	s.client.Publish(s.prefix+"/"+key, 0, false, strconv.FormatFloat(value, 'g', -1, 64))
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
