package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	persistencepkg "github.com/LeonardoBeccarini/sdcc_field_planner/internal/services/persistence"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/breaker"
	rabbitmq "github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("persistence: no .env file, using the environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- MQTT ---
	mqCfg := &rabbitmq.RabbitMQConfig{
		Host:     env("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     env("MQTT_USER", "guest"),
		Password: env("MQTT_PASS", "guest"),
		ClientID: env("MQTT_CLIENT_ID", "persistence-service"),
	}
	mqClient, err := rabbitmq.NewRabbitMQConn(mqCfg, ctx)
	if err != nil {
		log.Fatalf("persistence: mqtt connect failed: %v", err)
	}
	consumer := rabbitmq.NewMultiConsumer(mqClient,
		[]string{rabbitmq.TopicAggregated, rabbitmq.TopicSimulationSummary}, nil)

	// --- InfluxDB ---
	influxCfg := persistencepkg.InfluxConfig{
		InfluxURL:    env("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  env("INFLUX_TOKEN", ""),
		InfluxOrg:    env("INFLUX_ORG", "org"),
		InfluxBucket: env("INFLUX_BUCKET", "field-planner"),
		Measurement:  env("MEASUREMENT", persistencepkg.DefaultMeasurement),
	}
	influxClient, writer, querier, err := persistencepkg.NewInfluxClient(influxCfg)
	if err != nil {
		log.Fatalf("persistence: init failed: %v", err)
	}
	defer influxClient.Close()

	svc, err := persistencepkg.NewService(consumer, writer, querier, persistencepkg.Options{
		Measurement:    influxCfg.Measurement,
		RunMeasurement: env("RUN_MEASUREMENT", persistencepkg.DefaultRunMeasurement),
		Breaker: breaker.Settings{
			Failures: envInt("BREAKER_FAILURES", 5),
			OpenFor:  time.Duration(envInt("BREAKER_OPEN_MS", 10000)) * time.Millisecond,
			Interval: time.Duration(envInt("BREAKER_INTERVAL_MS", 0)) * time.Millisecond,
		},
		DedupTTL:  time.Duration(envInt("DEDUP_TTL_SEC", 600)) * time.Second,
		Connected: mqClient.IsConnectionOpen,
	})
	if err != nil {
		log.Fatalf("persistence: init failed: %v", err)
	}

	httpPort := env("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           persistencepkg.NewHTTPMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("persistence: HTTP listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("persistence: http server error: %v", err)
		}
	}()

	go svc.Start(ctx)

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("persistence: shutdown complete")
}
