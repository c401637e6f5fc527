package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	sensorSimulator "github.com/LeonardoBeccarini/sdcc_field_planner/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

func main() {
	fieldID := flag.String("field-id", "field1", "field identifier stamped on every reading")
	clientID := flag.String("client-id", "sensorSimulator1", "MQTT client ID")
	host := flag.String("mqtt-host", "localhost", "MQTT broker host")
	port := flag.Int("mqtt-port", 1883, "MQTT broker port")
	user := flag.String("mqtt-user", "guest", "MQTT user")
	pass := flag.String("mqtt-pass", "guest", "MQTT password")
	interval := flag.Duration("interval", sensorSimulator.DefaultUpdateInterval, "publish interval")
	lat := flag.Float64("lat", 12.969, "field center latitude")
	lon := flag.Float64("lon", 79.159, "field center longitude")
	radius := flag.Float64("radius-km", 1.0, "field radius in km")
	n := flag.Int("sensors", 20, "number of sensors")
	seed := flag.Int64("seed", 0, "random seed (0 = time based)")
	sampling := flag.String("sampling", string(sensorSimulator.SamplingCoherent), "coherent | per_axis")
	flag.Parse()

	mode, err := sensorSimulator.ParseSamplingMode(*sampling)
	if err != nil {
		log.Fatal(err)
	}
	var seedPtr *int64
	if *seed != 0 {
		seedPtr = seed
	}
	rng := sensorSimulator.NewRand(seedPtr)

	gen := sensorSimulator.NewFieldGenerator(rng, mode, *fieldID)
	field, err := gen.GenerateField(*n, entities.Point{Lat: *lat, Lon: *lon}, *radius)
	if err != nil {
		log.Fatalf("sensor: %v", err)
	}
	log.Printf("sensor: generated %d sensors around (%.5f, %.5f) r=%.2fkm, %d dry",
		len(field.Sensors), *lat, *lon, *radius, sensorSimulator.CountDry(field, sensorSimulator.DefaultDryThreshold))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &rabbitmq.RabbitMQConfig{
		Host:     *host,
		Port:     *port,
		User:     *user,
		Password: *pass,
		ClientID: *clientID,
	}
	client, err := rabbitmq.NewRabbitMQConn(cfg, ctx)
	if err != nil {
		log.Fatal(err)
	}
	publisher := rabbitmq.NewPublisher(client, rabbitmq.TopicMoistureRaw)
	defer publisher.Close()

	store := sensorSimulator.NewFieldStore()
	store.Replace(field)

	updater := sensorSimulator.NewMoistureUpdater(store, rng, publisher)
	log.Printf("sensor: updating every %s", *interval)
	updater.Start(ctx, *interval)
}
