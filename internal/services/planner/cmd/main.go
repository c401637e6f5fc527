package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	sensorSimulator "github.com/LeonardoBeccarini/sdcc_field_planner/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/services/planner/app"
	"github.com/LeonardoBeccarini/sdcc_field_planner/pkg/rabbitmq"
)

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// nil interfaces when MQTT is off: the planner only logs summaries and the
	// updater only mutates the live field
	var summaries, readings rabbitmq.IPublisher
	if cfg.MQTTHost != "" {
		client, err := rabbitmq.NewRabbitMQConn(cfg.mqtt(), ctx)
		if err != nil {
			log.Fatal(err)
		}
		summaries = rabbitmq.NewPublisher(client, rabbitmq.TopicSimulationSummary)
		readings = rabbitmq.NewPublisher(client, rabbitmq.TopicMoistureRaw)
	} else {
		log.Println("planner: MQTT_HOST not set, publishing disabled")
	}

	planner := app.NewPlanner(app.Config{
		Defaults:   cfg.Defaults,
		Breaker:    cfg.Breaker,
		AssetsHost: cfg.AssetsHost,
	}, summaries)

	// first field so the live endpoints have something to show
	if _, err := planner.Simulate(cfg.Defaults); err != nil {
		log.Fatalf("planner: default configuration: %v", err)
	}

	updater := sensorSimulator.NewMoistureUpdater(planner.Store(), sensorSimulator.NewRand(nil), readings)
	go updater.Start(ctx, cfg.UpdateInterval)

	lis, err := net.Listen("tcp", ":"+cfg.GrpcPort)
	if err != nil {
		log.Fatalf("planner: grpc listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	app.RegisterPlannerServer(grpcServer, app.NewGrpcHandler(planner))
	go func() {
		log.Printf("planner: gRPC listening on :%s", cfg.GrpcPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("planner: grpc serve: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           planner.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("planner: HTTP listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("planner: http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("planner: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	if summaries != nil {
		summaries.Close()
	}
}
