package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"midtown_book/internal/adapters/observability"
)

type viewSink interface {
	AddViews(ctx context.Context, id int64, n int64) error
}

// ViewRecorder counts listing page views off the request path. Delivery is
// at-most-once: a full buffer drops the view and a failed flush drops its batch.
type ViewRecorder struct {
	sink     viewSink
	events   chan int64
	interval time.Duration
}

func NewViewRecorder(sink viewSink, buffer int, interval time.Duration) *ViewRecorder {
	if buffer <= 0 {
		buffer = 1024
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ViewRecorder{sink: sink, events: make(chan int64, buffer), interval: interval}
}

// Record queues one view of a business and never blocks. It reports whether the view was queued.
func (v *ViewRecorder) Record(businessID int64) bool {
	select {
	case v.events <- businessID:
		observability.ObserveViews("queued", 1)
		return true
	default:
		observability.ObserveViews("dropped", 1)
		log.Warn().Int64("id", businessID).Msg("view buffer full; view dropped")
		return false
	}
}

// Run batches queued views and flushes them every interval until ctx is done,
// then drains the buffer and flushes once more.
func (v *ViewRecorder) Run(ctx context.Context) {
	t := time.NewTicker(v.interval)
	defer t.Stop()

	pending := make(map[int64]int64)
	for {
		select {
		case id := <-v.events:
			pending[id]++
		case <-t.C:
			v.flush(ctx, pending)
		case <-ctx.Done():
		drain:
			for {
				select {
				case id := <-v.events:
					pending[id]++
				default:
					break drain
				}
			}
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			v.flush(fctx, pending)
			cancel()
			return
		}
	}
}

func (v *ViewRecorder) flush(ctx context.Context, pending map[int64]int64) {
	for id, n := range pending {
		if err := v.sink.AddViews(ctx, id, n); err != nil {
			observability.ObserveViews("failed", int(n))
			log.Error().Err(err).Str("context", "ViewRecorder.flush").Int64("id", id).Int64("views", n).Msg("view flush failed; batch dropped")
		} else {
			observability.ObserveViews("flushed", int(n))
		}
		delete(pending, id)
	}
}
