package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
	sensorSimulator "github.com/LeonardoBeccarini/sdcc_field_planner/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/breaker"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

type Config struct {
	HTTPPort string
	GrpcPort string

	// MQTT is disabled when MQTTHost is empty.
	MQTTHost     string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	Defaults       simulation.Config
	Breaker        breaker.Settings
	UpdateInterval time.Duration
	AssetsHost     string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: %s=%q is not an integer, using %d", k, v, d)
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("config: %s=%q is not a number, using %v", k, v, d)
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
		log.Printf("config: %s=%q is not a duration, using %s", k, v, d)
	}
	return d
}

func loadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file, using the environment")
	}

	defaults := simulation.DefaultConfig()
	defaults.FieldID = getenv("FIELD_ID", defaults.FieldID)
	defaults.Center = entities.Point{
		Lat: getenvFloat("CENTER_LAT", defaults.Center.Lat),
		Lon: getenvFloat("CENTER_LON", defaults.Center.Lon),
	}
	defaults.RadiusKm = getenvFloat("RADIUS_KM", defaults.RadiusKm)
	defaults.SensorCount = getenvInt("N_SENSORS", defaults.SensorCount)
	defaults.DryThreshold = getenvFloat("DRY_THRESHOLD", defaults.DryThreshold)
	defaults.Sampling = sensorSimulator.SamplingMode(getenv("SAMPLING", string(defaults.Sampling)))
	if seed := int64(getenvInt("SEED", 0)); seed != 0 {
		defaults.Seed = &seed
	}
	// power planning is on only when a per-sensor draw is configured
	if mv := getenvFloat("POWER_PER_SENSOR_MV", 0); mv > 0 {
		defaults.Power = &entities.PowerParams{
			TileAreaMM2:      getenvFloat("TILE_AREA_MM2", 0),
			PowerPerSensorMV: mv,
		}
	}

	return Config{
		HTTPPort: getenv("PORT", "8080"),
		GrpcPort: getenv("GRPC_PORT", "9090"),

		MQTTHost:     getenv("MQTT_HOST", ""),
		MQTTPort:     getenvInt("MQTT_PORT", 1883),
		MQTTUser:     getenv("MQTT_USER", "guest"),
		MQTTPassword: getenv("MQTT_PASS", "guest"),
		MQTTClientID: getenv("MQTT_CLIENT_ID", "field-planner"),

		Defaults: defaults,
		Breaker: breaker.Settings{
			Failures: getenvInt("BREAKER_FAILURES", 5),
			OpenFor:  time.Duration(getenvInt("BREAKER_OPEN_MS", 10000)) * time.Millisecond,
			Interval: time.Duration(getenvInt("BREAKER_INTERVAL_MS", 0)) * time.Millisecond,
		},
		UpdateInterval: getenvDuration("UPDATE_INTERVAL", sensorSimulator.DefaultUpdateInterval),
		AssetsHost:     getenv("ECHARTS_ASSETS_HOST", ""),
	}
}

func (c Config) mqtt() *rabbitmq.RabbitMQConfig {
	return &rabbitmq.RabbitMQConfig{
		Host:     c.MQTTHost,
		Port:     c.MQTTPort,
		User:     c.MQTTUser,
		Password: c.MQTTPassword,
		ClientID: c.MQTTClientID,
	}
}
