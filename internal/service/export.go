package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
)

var ErrNothingToExport = errors.New("no snapshot to export")

// Uploader stores an object and returns a download URL, e.g. *cloud.S3Client.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// SurfaceRenderer renders one mounted surface, e.g. *charts.Controller.
type SurfaceRenderer interface {
	Render(s charts.Surface, w io.Writer) error
}

type Export struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

// Exporter uploads the current snapshot and every rendered chart.
type Exporter struct {
	dash     *Dashboard
	charts   SurfaceRenderer
	uploader Uploader
	prefix   string
}

func NewExporter(d *Dashboard, r SurfaceRenderer, u Uploader, prefix string) *Exporter {
	if prefix == "" {
		prefix = "exports"
	}
	return &Exporter{dash: d, charts: r, uploader: u, prefix: prefix}
}

// Export uploads snapshot.json and one PNG per mounted surface under
// <prefix>/<snapshot id>/. Unmounted surfaces are skipped.
func (e *Exporter) Export(ctx context.Context) ([]Export, error) {
	snap := e.dash.State().Snapshot
	if snap == nil {
		return nil, ErrNothingToExport
	}
	dir := path.Join(e.prefix, snap.ID)

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	key := path.Join(dir, "snapshot.json")
	url, err := e.uploader.Upload(ctx, key, body, "application/json")
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	out := []Export{{Name: "snapshot", Key: key, URL: url}}

	for _, s := range charts.Surfaces {
		var buf bytes.Buffer
		if err := e.charts.Render(s, &buf); err != nil {
			if !errors.Is(err, charts.ErrNotAttached) && !errors.Is(err, charts.ErrNotMounted) {
				log.Warn().Err(err).Str("surface", string(s)).Msg("skipping chart export")
			}
			continue
		}
		key := path.Join(dir, string(s)+".png")
		url, err := e.uploader.Upload(ctx, key, buf.Bytes(), "image/png")
		if err != nil {
			return out, fmt.Errorf("upload %s: %w", s, err)
		}
		out = append(out, Export{Name: string(s), Key: key, URL: url})
	}
	log.Info().Str("snapshot", snap.ID).Int("objects", len(out)).Msg("snapshot exported")
	return out, nil
}
