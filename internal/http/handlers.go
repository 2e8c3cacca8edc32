// Package http exposes the dashboard state as a JSON API for other
// services and scripts.
package http

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/samber/lo"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/normalize"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/service"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

// Deps are the components the API reads from. Exporter may be nil when
// cloud services are disabled.
type Deps struct {
	Dashboard *service.Dashboard
	Charts    *charts.Controller
	Exporter  *service.Exporter
	Metrics   *telemetry.Metrics
}

type metricView struct {
	Name    domain.MetricName `json:"name"`
	Label   string            `json:"label"`
	Value   domain.Sample     `json:"value"`
	Display string            `json:"display"`
}

type fallbackView struct {
	Kind   domain.Kind `json:"kind"`
	Reason string      `json:"reason"`
	Error  string      `json:"error,omitempty"`
}

func Register(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		st := d.Dashboard.State()
		return c.JSON(fiber.Map{
			"status":  lo.Ternary(st.Live(), "ok", "degraded"),
			"loading": st.Loading,
			"error":   st.Error,
		})
	})

	g := app.Group("/")
	g.Get("snapshot", func(c *fiber.Ctx) error {
		snap, err := current(d)
		if err != nil {
			return err
		}
		return c.JSON(snap)
	})
	g.Get("anomalies", func(c *fiber.Ctx) error {
		snap, err := current(d)
		if err != nil {
			return err
		}
		records := snap.AnomalyList.Records
		if sev := c.Query("severity"); sev != "" {
			t, err := domain.ParseTier(sev)
			if err != nil {
				return c.Status(400).JSON(fiber.Map{"error": err.Error()})
			}
			records = snap.AnomalyList.BySeverity(t)
		}
		return c.JSON(fiber.Map{
			"origin":  snap.AnomalyList.Origin(),
			"count":   len(records),
			"records": lo.Ternary(records == nil, []domain.AnomalyRecord{}, records),
		})
	})
	g.Get("metrics/model", func(c *fiber.Ctx) error {
		snap, err := current(d)
		if err != nil {
			return err
		}
		return c.JSON(lo.Map(domain.MetricSpecs, func(s domain.MetricSpec, _ int) metricView {
			return metricView{Name: s.Name, Label: s.Label, Value: snap.Metrics.Get(s.Name), Display: snap.Metrics.Display(s.Name)}
		}))
	})
	g.Get("correlation", func(c *fiber.Ctx) error {
		snap, err := current(d)
		if err != nil {
			return err
		}
		return c.JSON(snap.CorrelationMatrix)
	})
	g.Get("summary", func(c *fiber.Ctx) error {
		snap, err := current(d)
		if err != nil {
			return err
		}
		return c.JSON(service.Summarize(snap))
	})
	g.Get("report", func(c *fiber.Ctx) error {
		st := d.Dashboard.State()
		rep := st.Report
		return c.JSON(fiber.Map{
			"live":      lo.Ternary(rep.Live == nil, []domain.Kind{}, rep.Live),
			"sanitized": rep.Sanitized,
			"fallbacks": lo.Map(rep.Fallbacks, func(f normalize.Fallback, _ int) fallbackView {
				v := fallbackView{Kind: f.Kind, Reason: string(f.Reason)}
				if f.Err != nil {
					v.Error = f.Err.Error()
				}
				return v
			}),
			"unavailable": rep.Unavailable,
		})
	})
	g.Get("charts/:surface", func(c *fiber.Ctx) error {
		s, ok := charts.ParseSurface(c.Params("surface"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "unknown surface"})
		}
		var buf bytes.Buffer
		err := d.Charts.Render(s, &buf)
		switch {
		case errors.Is(err, charts.ErrNotAttached), errors.Is(err, charts.ErrNotMounted):
			return c.SendStatus(204)
		case err != nil:
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(buf.Bytes())
	})
	g.Post("refresh", func(c *fiber.Ctx) error {
		err := d.Dashboard.TryTrigger()
		switch {
		case err == nil:
			return c.Status(202).JSON(fiber.Map{"status": "refreshing"})
		case errors.Is(err, service.ErrRefreshInFlight):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrRateLimited):
			c.Set(fiber.HeaderRetryAfter, "2")
			return c.Status(429).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	})
	g.Post("export", func(c *fiber.Ctx) error {
		if d.Exporter == nil {
			return c.Status(503).JSON(fiber.Map{"error": "cloud services disabled"})
		}
		out, err := d.Exporter.Export(c.UserContext())
		if errors.Is(err, service.ErrNothingToExport) {
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(502).JSON(fiber.Map{"error": err.Error(), "exported": out})
		}
		return c.JSON(fiber.Map{"exported": out})
	})
	if d.Metrics != nil {
		g.Get("metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}
}

// ErrorHandler renders every error as {"error": msg}, keeping the status of
// a *fiber.Error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// current returns the published snapshot or a 503 until the first refresh
// has completed.
func current(d Deps) (*domain.Snapshot, error) {
	snap := d.Dashboard.State().Snapshot
	if snap == nil {
		return nil, fiber.NewError(503, "no snapshot yet")
	}
	return snap, nil
}
