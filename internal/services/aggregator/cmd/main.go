package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/services/aggregator"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("aggregator: no .env file, using the environment")
	}
	port, err := strconv.Atoi(getenv("MQTT_PORT", "1883"))
	if err != nil {
		log.Fatalf("aggregator: MQTT_PORT: %v", err)
	}
	interval, err := time.ParseDuration(getenv("AGGREGATION_INTERVAL", aggregator.DefaultInterval.String()))
	if err != nil {
		log.Fatalf("aggregator: AGGREGATION_INTERVAL: %v", err)
	}

	cfg := &rabbitmq.RabbitMQConfig{
		Host:     getenv("MQTT_HOST", "localhost"),
		Port:     port,
		User:     getenv("MQTT_USER", "guest"),
		Password: getenv("MQTT_PASS", "guest"),
		ClientID: getenv("MQTT_CLIENT_ID", "dataAggregator1"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(cfg, ctx)
	if err != nil {
		log.Fatalf("aggregator: %v", err)
	}

	publisher := rabbitmq.NewPublisher(client, rabbitmq.TopicAggregated)
	// handler is injected by the service
	consumer := rabbitmq.NewConsumer(client, rabbitmq.TopicMoistureRaw, nil)

	svc := aggregator.NewDataAggregatorService(consumer, publisher, interval)
	log.Printf("aggregator: running, interval %s", interval)
	svc.Start(ctx)
}
