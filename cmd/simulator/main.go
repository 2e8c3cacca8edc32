package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/config"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/service"
)

// simulator is a stand-in for the analytics service. It serves partial
// payloads over HTTP and, with MQTT enabled, publishes fresh payloads to
// the outputs topic.
type simulator struct {
	rng      *rand.Rand
	drop     float64
	failRate float64
}

func (s *simulator) routes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/routes/ml/charts", func(c *fiber.Ctx) error {
		if s.rng.Float64() < s.failRate {
			return c.Status(404).JSON(fiber.Map{"msg": "ML outputs not found"})
		}
		body, err := buildPayload(s.rng, s.drop)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"msg": err.Error()})
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(body)
	})
}

func (s *simulator) publish(ctx context.Context, client mqtt.Client, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	topic := config.MQTTOutputsTopic()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		body, err := buildPayload(s.rng, s.drop)
		if err != nil {
			log.Error().Err(err).Msg("build payload")
			continue
		}
		token := client.Publish(topic, 0, false, body)
		token.Wait()
		if token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", topic).Msg("publish failed")
			continue
		}
		log.Info().Str("topic", topic).Int("bytes", len(body)).Msg("payload published")
	}
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	viper.SetDefault("SIMULATOR_DROP_RATE", 0.2)
	viper.SetDefault("SIMULATOR_FAIL_RATE", 0.05)
	viper.SetDefault("SIMULATOR_PUBLISH_EVERY", "1m")
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the fiber handlers run concurrently
	sim := &simulator{
		rng:      rand.New(&lockedSource{src: rand.NewSource(time.Now().UnixNano())}),
		drop:     viper.GetFloat64("SIMULATOR_DROP_RATE"),
		failRate: viper.GetFloat64("SIMULATOR_FAIL_RATE"),
	}

	if config.MQTTEnabled() {
		opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker()).SetClientID(config.MQTTClientID() + "-simulator")
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatal().Err(token.Error()).Msg("mqtt connect")
		}
		defer client.Disconnect(250)
		go sim.publish(ctx, client, viper.GetDuration("SIMULATOR_PUBLISH_EVERY"))

		// announce once so running dashboards pick up the simulator immediately
		upd, _ := json.Marshal(service.ModelUpdate{Model: "simulator", Version: "0", Timestamp: time.Now().UTC()})
		client.Publish(config.MQTTRefreshTopic(), 0, false, upd).Wait()
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	sim.routes(app)
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	addr := config.SimulatorAddr()
	log.Info().Str("addr", addr).Float64("drop_rate", sim.drop).Msg("simulator listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server exit")
	}
	log.Info().Msg("simulation done")
}
