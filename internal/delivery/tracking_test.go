package delivery

import (
	"bytes"
	"context"
	"image/gif"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingPixel(t *testing.T) {
	assert.True(t, bytes.HasPrefix(TrackingPixel, []byte("GIF89a")))
	cfg, err := gif.DecodeConfig(bytes.NewReader(TrackingPixel))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Width)
	assert.Equal(t, 1, cfg.Height)
}

func TestTracker_MarkOpenedOnce(t *testing.T) {
	f := newPipelineFixture(t, true)
	ctx := context.Background()
	res, err := f.pipeline.Deliver(ctx, f.user, "verdict")
	require.NoError(t, err)

	tr := NewTracker(f.db, f.clock, discardLogger())
	tr.MarkOpened(ctx, res.LogID)
	first, err := f.db.GetDeliveryLog(ctx, res.LogID)
	require.NoError(t, err)
	require.NotNil(t, first.OpenedAt)

	f.clock.Advance(time.Hour)
	tr.MarkOpened(ctx, res.LogID)
	second, err := f.db.GetDeliveryLog(ctx, res.LogID)
	require.NoError(t, err)
	assert.True(t, first.OpenedAt.Equal(*second.OpenedAt), "second open must not move the timestamp")

	// Unknown ids are logged, not surfaced.
	tr.MarkOpened(ctx, "missing")
}
