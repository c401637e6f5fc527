package rabbitmq

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Topic layout shared by every service.
const (
	TopicMoistureRaw       = "farm/+/moisture"
	TopicAggregatedPrefix  = "farm/aggregated/"
	TopicAggregated        = TopicAggregatedPrefix + "+"
	TopicSimulationSummary = "farm/simulation/summary"
	topicSimulationPrefix  = "farm/simulation/"
)

// MoistureTopic is the raw reading topic of one sensor.
func MoistureTopic(sensorID string) string {
	return "farm/" + sensorID + "/moisture"
}

// AggregatedTopic is the averaged reading topic of one sensor.
func AggregatedTopic(sensorID string) string {
	return TopicAggregatedPrefix + sensorID
}

// IConsumer interface defines the ConsumeMessage method with dependencies T
type IConsumer[T any] interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler func(queue string, message T) error)
}

// Consumer subscribes a single topic filter.
type Consumer struct {
	client  mqtt.Client
	handler func(queue string, message mqtt.Message) error
	topic   string
}

func NewConsumer(client mqtt.Client, topic string, handler func(queue string, message mqtt.Message) error) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

func (c *Consumer) SetHandler(handler func(queue string, message mqtt.Message) error) {
	c.handler = handler
}

// qosFor: aggregated readings and run summaries are at-least-once, raw
// readings are fire-and-forget.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, TopicAggregatedPrefix) ||
		strings.HasPrefix(t, topicSimulationPrefix) {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes to the topic and processes messages using the handler.
// It blocks until the context is cancelled.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	NewMultiConsumer(c.client, []string{c.topic}, c.handler).ConsumeMessage(ctx)
}

// MultiConsumer subscribes several filters with the same handler.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	handler func(queue string, message mqtt.Message) error
}

func NewMultiConsumer(client mqtt.Client, topics []string, handler func(queue string, message mqtt.Message) error) *MultiConsumer {
	return &MultiConsumer{
		client:  client,
		topics:  topics,
		handler: handler,
	}
}

func (m *MultiConsumer) SetHandler(handler func(queue string, message mqtt.Message) error) {
	m.handler = handler
}

func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	for _, topic := range m.topics {
		token := m.client.Subscribe(topic, qosFor(topic), m.dispatch(topic))
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqtt: error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("mqtt: subscribed to %s", topic)
		}
	}

	<-ctx.Done()

	m.client.Unsubscribe(m.topics...).Wait()
}

func (m *MultiConsumer) dispatch(topic string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if m.handler == nil {
			log.Printf("mqtt: no handler set for %s", topic)
			return
		}
		if err := m.handler(topic, msg); err != nil {
			log.Printf("mqtt: error handling message on %s: %v", msg.Topic(), err)
		}
	}
}
