package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/app"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/config"
	httpHandlers "github.com/ANIKETSHETTY47/powersense-dashboard/internal/http"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.InitTracer(config.TracingEnabled(), os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("tracer init failed")
	}
	defer func() { _ = shutdown(context.Background()) }()

	a, err := app.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("app init failed")
	}
	defer a.Close()

	srv := fiber.New(fiber.Config{ErrorHandler: httpHandlers.ErrorHandler})
	httpHandlers.Register(srv, httpHandlers.Deps{
		Dashboard: a.Dashboard,
		Charts:    a.Charts,
		Exporter:  a.Exporter,
		Metrics:   a.Metrics,
	})
	a.Start(ctx)

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown()
	}()

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Msg("api listening")
	if err := srv.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server exit")
	}
}
