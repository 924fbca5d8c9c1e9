package appointments

import (
	"context"
	"time"

	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Completer periodically moves appointments whose slot has ended to
// COMPLETED.
type Completer struct {
	ledger   Ledger
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	interval time.Duration
	now      func() time.Time
}

func NewCompleter(ledger Ledger, logger *logging.Logger, m *metrics.BookingMetrics) *Completer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Completer{
		ledger:   ledger,
		logger:   logger,
		metrics:  m,
		interval: 5 * time.Minute,
		now:      time.Now,
	}
}

func (c *Completer) WithInterval(interval time.Duration) *Completer {
	if interval > 0 {
		c.interval = interval
	}
	return c
}

// Start blocks until ctx is done.
func (c *Completer) Start(ctx context.Context) {
	if c.ledger == nil {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Completer) sweep(ctx context.Context) int {
	n, err := c.ledger.CompleteEndedBefore(ctx, c.now())
	if err != nil {
		c.logger.Error("completion sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		c.metrics.AddCompleted(n)
		c.logger.Info("appointments completed", "count", n)
	}
	return n
}
