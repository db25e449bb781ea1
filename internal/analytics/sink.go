package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/ayangquest/questapi/internal/metrics"
)

// Sink accepts events without reporting failure.
type Sink interface {
	Record(e Event)
}

// Nop is the sink used when analytics is not configured.
type Nop struct{}

func (Nop) Record(Event) {}

// Writer persists a single event.
type Writer interface {
	Write(ctx context.Context, e Event) error
}

// Locator resolves a client IP to a coarse location. Unknown parts are empty.
type Locator interface {
	Locate(ctx context.Context, ip string) (country, city string)
}

const writeTimeout = 5 * time.Second

// Queue buffers events for a single background writer. When the buffer is
// full the event is dropped; failed writes are logged and not retried.
type Queue struct {
	ch      chan Event
	w       Writer
	geo     Locator
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewQueue creates a queue holding up to size pending events. geo and m may
// be nil.
func NewQueue(logger *slog.Logger, w Writer, geo Locator, size int, m *metrics.Metrics) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		ch:      make(chan Event, size),
		w:       w,
		geo:     geo,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

func (q *Queue) Record(e Event) {
	if e.At.IsZero() {
		e.At = q.now()
	}
	select {
	case q.ch <- e:
	default:
		q.logger.Warn("analytics queue full, dropping event", "kind", e.Kind)
		if q.metrics != nil {
			q.metrics.AnalyticsDropped.Inc()
		}
	}
}

// Run writes queued events until ctx is done, then flushes what is left.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case e := <-q.ch:
			q.write(ctx, e)
		case <-ctx.Done():
			q.flush()
			return nil
		}
	}
}

func (q *Queue) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for {
		select {
		case e := <-q.ch:
			q.write(ctx, e)
		default:
			return
		}
	}
}

func (q *Queue) write(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if e.Kind == KindPageView && q.geo != nil && e.ClientIP != "" && e.Country == "" && e.City == "" {
		e.Country, e.City = q.geo.Locate(ctx, e.ClientIP)
	}

	if err := q.w.Write(ctx, e); err != nil {
		q.logger.Error("analytics write failed", "kind", e.Kind, "error", err)
		if q.metrics != nil {
			q.metrics.AnalyticsFailed.Inc()
		}
		return
	}
	if q.metrics != nil {
		q.metrics.AnalyticsRecorded.WithLabelValues(string(e.Kind)).Inc()
	}
}
