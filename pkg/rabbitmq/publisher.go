package rabbitmq

import (
	"fmt"
	"log"

	"github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes either on the topic it was built for or on an explicit one.
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishTo(topic string, qos byte, retained bool, message interface{}) error
	Close()
}

// Publisher holds the client and the default topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
	}
}

// PublishMessage publishes on the default topic with the QoS its prefix requires.
func (p *Publisher) PublishMessage(message interface{}) error {
	return p.PublishTo(p.topic, qosFor(p.topic), false, message)
}

// PublishTo accepts string or []byte payloads.
func (p *Publisher) PublishTo(topic string, qos byte, retained bool, message interface{}) error {
	var payload []byte
	switch m := message.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		return fmt.Errorf("invalid message format %T, expected string or []byte", message)
	}
	if topic == "" {
		return fmt.Errorf("empty topic")
	}

	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqtt: publisher disconnected")
	}
}
