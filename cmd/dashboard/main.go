package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/app"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/config"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/server"
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

	s := server.New(a.Dashboard, a.Charts, a.Metrics)
	defer s.Close()
	a.Start(ctx)

	httpSrv := &http.Server{Addr: config.DashboardAddr(), Handler: s, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info().Str("addr", httpSrv.Addr).Msg("PowerSense dashboard listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server exit")
	}
}
