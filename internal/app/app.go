// Package app assembles the dashboard from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/api"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/cache"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/cloud"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/config"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/database"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/normalize"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/repository"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/service"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

type App struct {
	Metrics   *telemetry.Metrics
	Dashboard *service.Dashboard
	Charts    *charts.Controller
	Scheduler *service.Scheduler
	Exporter  *service.Exporter

	trigger *service.ModelTrigger
	cache   *cache.ReadThrough
	closers []func()
}

// New wires the configured payload source, the orchestrator and the chart
// controller. Cloud features are only enabled with USE_CLOUD_SERVICES.
func New(ctx context.Context) (*App, error) {
	a := &App{Metrics: telemetry.NewMetrics()}

	src, err := a.source(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	norm := normalize.New(normalize.WithThresholds(config.Thresholds()))
	a.Dashboard = service.New(src,
		service.WithNormalizer(norm),
		service.WithMetrics(a.Metrics),
		service.WithRateLimit(config.RefreshMinGap(), 1),
		service.WithTimeout(config.UpstreamTimeout()),
	)

	a.Charts = charts.NewController(charts.NewChartFactory())
	for _, s := range charts.Surfaces {
		if err := a.Charts.Attach(s); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Dashboard.Subscribe(a.applyCharts)
	a.closers = append(a.closers, a.Charts.Close)

	a.Scheduler = service.NewScheduler(a.Dashboard, config.RefreshInterval(), config.RefreshMaxBackoff(), nil)

	if config.UseCloudServices() {
		if err := a.cloud(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) source(ctx context.Context) (service.Source, error) {
	var src service.Source
	switch config.UpstreamSource() {
	case config.SourcePostgres:
		db, err := database.Connect(ctx, config.DBDSN())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		src = repository.New(db)
	case config.SourceS3:
		cfg, err := cloud.LoadConfig(ctx, config.AWSRegion())
		if err != nil {
			return nil, err
		}
		src = cloud.NewS3Client(cfg, config.S3Bucket()).Payload(config.PayloadS3Key())
	case config.SourceLambda:
		cfg, err := cloud.LoadConfig(ctx, config.AWSRegion())
		if err != nil {
			return nil, err
		}
		src = cloud.NewLambdaClient(cfg).Payload(config.PayloadLambdaFunction())
	case config.SourceHTTP:
		src = api.New(config.UpstreamURL(), api.Options{
			Timeout:    config.UpstreamTimeout(),
			MaxRetries: config.UpstreamRetries(),
		})
	default:
		return nil, fmt.Errorf("unknown upstream source %q", config.UpstreamSource())
	}
	log.Info().Str("source", config.UpstreamSource()).Msg("payload source configured")

	if ttl := config.PayloadCacheTTL(); ttl > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr()})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.cache = cache.New(rdb, src, "", ttl, a.Metrics)
		log.Info().Dur("ttl", ttl).Str("redis", config.RedisAddr()).Msg("payload cache enabled")
		return a.cache, nil
	}
	return src, nil
}

func (a *App) cloud(ctx context.Context) error {
	cfg, err := cloud.LoadConfig(ctx, config.AWSRegion())
	if err != nil {
		return err
	}
	s3c := cloud.NewS3Client(cfg, config.S3Bucket())
	a.Exporter = service.NewExporter(a.Dashboard, a.Charts, s3c, config.ExportPrefix())

	if arn := config.SNSTopicArn(); arn != "" {
		alerter := service.NewAlerter(cloud.NewSNSClient(cfg, arn), a.Metrics)
		a.Dashboard.Subscribe(alerter.Observe)
	}
	log.Info().Str("bucket", config.S3Bucket()).Bool("sns", config.SNSTopicArn() != "").Msg("cloud services enabled")
	return nil
}

func (a *App) applyCharts(st *service.State) {
	if err := a.Charts.Apply(st.Snapshot, st.Loading); err != nil {
		log.Error().Err(err).Msg("chart update failed")
	}
	a.Metrics.SetChartsLive(a.Charts.Stats().Live)
}

// Start runs the scheduler and, when enabled, the MQTT trigger. Both stop
// when ctx is done.
func (a *App) Start(ctx context.Context) {
	go a.Scheduler.Run(ctx)

	if !config.MQTTEnabled() {
		return
	}
	a.trigger = service.NewModelTrigger(a.Dashboard, config.MQTTRefreshTopic())
	if a.cache != nil {
		a.trigger.OnUpdate(a.cache.Invalidate)
	}
	if err := a.trigger.Start(config.MQTTBroker(), config.MQTTClientID()); err != nil {
		log.Error().Err(err).Str("broker", config.MQTTBroker()).Msg("mqtt trigger disabled")
		a.trigger = nil
	}
}

// Close releases everything New and Start acquired, newest first.
func (a *App) Close() {
	if a.trigger != nil {
		a.trigger.Stop()
	}
	if a.Dashboard != nil {
		a.Dashboard.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
