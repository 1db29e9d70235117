package localize

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ReadingMessage is the payload published for a sensor's cached reading
type ReadingMessage struct {
	SensorID  string      `json:"sensorId"`
	Distance  float64     `json:"distance"`
	StdDev    float64     `json:"stddev"`
	InRange   bool        `json:"inRange"`
	Mount     SensorMount `json:"mount"`
	Timestamp int64       `json:"timestamp"`
}

// Publisher publishes sensor readings and cycle summaries to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	summaries     map[string]CycleSummary
	mu            sync.RWMutex
}

// NewPublisher creates a publisher. The topic prefix comes from
// MQTT_PUBLISH_PREFIX, then prefix, then "wallrange". A nil client disables
// publishing.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "wallrange"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // fire and forget
		retain:        true, // latest value for late subscribers
		summaries:     make(map[string]CycleSummary),
	}
}

// PublishReading publishes a model's cached reading to prefix/<sensor>/reading
func (p *Publisher) PublishReading(m *DistanceModel) error {
	reading, ok := m.Reading()
	if !ok {
		return ErrNotRefreshed
	}

	msg := ReadingMessage{
		SensorID:  m.Name(),
		Distance:  reading.Distance,
		StdDev:    reading.StdDev,
		InRange:   m.InRange(),
		Mount:     m.Mount(),
		Timestamp: time.Now().Unix(),
	}

	return p.publishJSON(fmt.Sprintf("%s/%s/reading", p.publishPrefix, m.Name()), msg)
}

// CycleMessage is the payload published to prefix/cycle once per cycle
type CycleMessage struct {
	Cycle     uint64         `json:"cycle"`
	Sensors   []CycleSummary `json:"sensors"`
	Combined  CycleSummary   `json:"combined"`
	Timestamp int64          `json:"timestamp"`
}

// PublishCycle publishes one completed cycle to prefix/cycle: every sensor's
// summary from that cycle and the summary of their combined likelihoods
func (p *Publisher) PublishCycle(cycle uint64, sensors []CycleSummary, combined CycleSummary) error {
	p.mu.Lock()
	for _, s := range sensors {
		p.summaries[s.SensorID] = s
	}
	p.mu.Unlock()

	message := CycleMessage{
		Cycle:     cycle,
		Sensors:   sensors,
		Combined:  combined,
		Timestamp: time.Now().Unix(),
	}

	if err := p.publishJSON(fmt.Sprintf("%s/cycle", p.publishPrefix), message); err != nil {
		log.Printf("Error publishing cycle summary: %v", err)
		return err
	}
	return nil
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// GetSummary returns the last published summary for a sensor
func (p *Publisher) GetSummary(sensorID string) (CycleSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.summaries[sensorID]
	return s, ok
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages are retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
