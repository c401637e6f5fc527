package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// fakeClient records publishes and keeps subscription callbacks so tests can deliver.
type fakeClient struct {
	mu           sync.Mutex
	publishErr   error
	published    []published
	subs         map[string]byte
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	subscribed   chan string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		subs:       map[string]byte{},
		handlers:   map[string]mqtt.MessageHandler{},
		subscribed: make(chan string, 8),
	}
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return &fakeToken{} }
func (c *fakeClient) Disconnect(uint)        {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{err: c.publishErr}
}
func (c *fakeClient) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.subs[topic] = qos
	c.handlers[topic] = cb
	c.mu.Unlock()
	c.subscribed <- topic
	return &fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	return &fakeToken{}
}
func (c *fakeClient) AddRoute(string, mqtt.MessageHandler)    {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (c *fakeClient) deliver(filter, topic string, payload []byte) {
	c.mu.Lock()
	cb := c.handlers[filter]
	c.mu.Unlock()
	cb(c, fakeMessage{topic: topic, payload: payload})
}

func TestQosFor(t *testing.T) {
	tests := []struct {
		topic string
		want  byte
	}{
		{TopicMoistureRaw, 0},
		{MoistureTopic("SENSOR_1"), 0},
		{TopicAggregated, 1},
		{AggregatedTopic("SENSOR_7"), 1},
		{TopicSimulationSummary, 1},
		{"  farm/simulation/summary ", 1},
		{"something/else", 0},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, qosFor(tt.topic))
		})
	}
}

func TestPublisher_PublishMessage(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, TopicSimulationSummary)

	require.NoError(t, p.PublishMessage(`{"run_id":"x"}`))
	require.NoError(t, p.PublishMessage([]byte("raw")))
	require.Len(t, client.published, 2)
	assert.Equal(t, TopicSimulationSummary, client.published[0].topic)
	assert.Equal(t, byte(1), client.published[0].qos)
	assert.Equal(t, []byte(`{"run_id":"x"}`), client.published[0].payload)
	assert.Equal(t, []byte("raw"), client.published[1].payload)
}

func TestPublisher_Errors(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, MoistureTopic("SENSOR_1"))

	assert.Error(t, p.PublishMessage(42))
	assert.Error(t, p.PublishTo("", 0, false, "x"))
	assert.Empty(t, client.published)

	client.publishErr = errors.New("broker gone")
	err := p.PublishTo(MoistureTopic("SENSOR_2"), 0, false, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.publishErr)
}

func TestMultiConsumer_DispatchAndUnsubscribe(t *testing.T) {
	client := newFakeClient()
	got := make(chan string, 4)
	c := NewMultiConsumer(client, []string{TopicAggregated, TopicSimulationSummary}, nil)
	c.SetHandler(func(filter string, msg mqtt.Message) error {
		got <- filter + "|" + msg.Topic() + "|" + string(msg.Payload())
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.ConsumeMessage(ctx)
		close(done)
	}()
	<-client.subscribed
	<-client.subscribed

	assert.Equal(t, byte(1), client.subs[TopicAggregated])
	assert.Equal(t, byte(1), client.subs[TopicSimulationSummary])

	client.deliver(TopicAggregated, AggregatedTopic("SENSOR_3"), []byte("42"))
	assert.Equal(t, TopicAggregated+"|farm/aggregated/SENSOR_3|42", <-got)

	cancel()
	<-done
	assert.ElementsMatch(t, []string{TopicAggregated, TopicSimulationSummary}, client.unsubscribed)
}

func TestConsumer_SingleTopic(t *testing.T) {
	client := newFakeClient()
	got := make(chan string, 1)
	c := NewConsumer(client, TopicMoistureRaw, func(_ string, msg mqtt.Message) error {
		got <- msg.Topic()
		return errors.New("handler errors are logged, not fatal")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.ConsumeMessage(ctx)
	<-client.subscribed

	assert.Equal(t, byte(0), client.subs[TopicMoistureRaw])
	client.deliver(TopicMoistureRaw, MoistureTopic("SENSOR_9"), []byte("{}"))
	assert.Equal(t, "farm/SENSOR_9/moisture", <-got)
}

func TestBrokerURL(t *testing.T) {
	cfg := &RabbitMQConfig{Host: "rabbitmq", Port: 1883}
	assert.Equal(t, "tcp://rabbitmq:1883", cfg.BrokerURL())
}
