package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
)

type memUploader struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *memUploader) Upload(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[key] = data
	m.types[key] = contentType
	return "https://example.test/" + key, nil
}

type stubRenderer map[charts.Surface]error

func (r stubRenderer) Render(s charts.Surface, w io.Writer) error {
	err, ok := r[s]
	if !ok {
		return charts.ErrNotAttached
	}
	if err != nil {
		return err
	}
	_, werr := w.Write([]byte("png:" + s))
	return werr
}

func TestExport(t *testing.T) {
	d := New(staticSource(`{}`))
	require.NoError(t, d.Refresh(context.Background()))
	id := d.State().Snapshot.ID

	up := &memUploader{}
	r := stubRenderer{
		charts.SurfaceHourly:            nil,
		charts.SurfaceLSTM:              charts.ErrNotMounted,
		charts.SurfaceRolling24h:        errors.New("render failed"),
		charts.SurfaceCorrelationMatrix: nil,
	}
	out, err := NewExporter(d, r, up, "").Export(context.Background())
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, "exports/"+id+"/snapshot.json", out[0].Key)
	assert.Equal(t, "application/json", up.types[out[0].Key])
	assert.Equal(t, "exports/"+id+"/hourly.png", out[1].Key)
	assert.Equal(t, []byte("png:hourly"), up.objects[out[1].Key])
	assert.Equal(t, "image/png", up.types[out[1].Key])
	assert.Equal(t, "https://example.test/"+out[2].Key, out[2].URL)
}

func TestExportWithoutSnapshot(t *testing.T) {
	_, err := NewExporter(New(staticSource(`{}`)), stubRenderer{}, &memUploader{}, "x").Export(context.Background())
	assert.ErrorIs(t, err, ErrNothingToExport)
}
