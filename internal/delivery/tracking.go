package delivery

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/sakif/life-tracker/internal/clock"
	"github.com/sakif/life-tracker/internal/repository"
)

// TrackingPixel is a 1x1 transparent GIF.
var TrackingPixel = mustHex("47494638396101000100800000ffffff00000021f90401000000002c00000000010001000002024401003b")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Tracker records briefing opens.
type Tracker struct {
	logs   repository.DeliveryRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewTracker(logs repository.DeliveryRepository, clk clock.Clock, logger *slog.Logger) *Tracker {
	return &Tracker{logs: logs, clock: clk, logger: logger}
}

// MarkOpened sets opened_at for logID the first time it is called; later
// calls leave the timestamp alone. Failures are logged and swallowed since
// the caller always answers with the pixel.
func (t *Tracker) MarkOpened(ctx context.Context, logID string) {
	marked, err := t.logs.MarkOpened(ctx, logID, t.clock.Now())
	if err != nil {
		t.logger.Warn("marking briefing opened", slog.String("log_id", logID), slog.String("error", err.Error()))
		return
	}
	if marked {
		t.logger.Info("briefing opened", slog.String("log_id", logID))
	}
}
