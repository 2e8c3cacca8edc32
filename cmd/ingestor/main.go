package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/config"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/database"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/repository"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, config.DBDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker()).SetClientID(config.MQTTClientID() + "-ingestor")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	refreshTopic := config.MQTTRefreshTopic()
	ing := service.NewIngestor(repository.New(db), config.PayloadRetain(), func(u service.ModelUpdate) error {
		body, err := json.Marshal(u)
		if err != nil {
			return err
		}
		token := client.Publish(refreshTopic, 0, false, body)
		token.Wait()
		return token.Error()
	})

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := ing.FromMQTT(ctx, msg.Topic(), msg.Payload()); err != nil {
			log.Error().Err(err).Str("topic", msg.Topic()).Msg("ingest failed")
		}
	}

	topic := config.MQTTOutputsTopic()
	if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("subscribe failed")
	}

	log.Info().Str("topic", topic).Msg("ingestor running; Ctrl+C to stop")
	<-ctx.Done()
}
