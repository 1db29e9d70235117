package localize

import (
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTDriver reports the latest sample published on an MQTT topic.
// It is fed by an MQTTClient subscription.
type MQTTDriver struct {
	sensorID string
	topic    string
	latest   *latestSample
}

// NewMQTTDriver creates a driver for samples on topic. Samples older than
// maxAge are reported as max-range; maxAge <= 0 disables the check.
func NewMQTTDriver(sensorID, topic string, maxAge time.Duration) *MQTTDriver {
	return &MQTTDriver{
		sensorID: sensorID,
		topic:    topic,
		latest:   newLatestSample(maxAge),
	}
}

// Topic returns the subscribed topic
func (d *MQTTDriver) Topic() string {
	return d.topic
}

// HandleMessage is the subscription callback for the driver's topic
func (d *MQTTDriver) HandleMessage(client mqtt.Client, msg mqtt.Message) {
	raw, err := ParseSample(msg.Payload())
	if err != nil {
		log.Printf("Error decoding sample for %s (topic: %s): %v", d.sensorID, msg.Topic(), err)
		return
	}
	if !validSample(raw) {
		log.Printf("Skipping non-finite sample for %s (topic: %s)", d.sensorID, msg.Topic())
		return
	}
	d.latest.store(raw)
}

// Sample returns the latest distance and confidence together
func (d *MQTTDriver) Sample() RawMeasurement {
	return d.latest.load()
}

func (d *MQTTDriver) Distance() float64 {
	return d.latest.load().DistanceMM
}

func (d *MQTTDriver) Confidence() float64 {
	return d.latest.load().Confidence
}

// LastUpdate returns when the last valid sample arrived
func (d *MQTTDriver) LastUpdate() time.Time {
	return d.latest.lastUpdate()
}
