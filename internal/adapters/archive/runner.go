package archive

import (
	"context"
	"log"
	"time"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
)

// Runner buffers samples from a channel and flushes them to the sink in
// batches, on size or on a timer, whichever fires first. Archive writes sit
// off the control loop's hot path: the loop hands samples over a buffered
// channel and drops them if the archive cannot keep up.
type Runner struct {
	sink       *PostgresSink
	in         chan domain.SensorSample
	batchSize  int
	flushEvery time.Duration
}

func NewRunner(sink *PostgresSink, batchSize int, flushEvery time.Duration) *Runner {
	return &Runner{
		sink:       sink,
		in:         make(chan domain.SensorSample, batchSize*4),
		batchSize:  batchSize,
		flushEvery: flushEvery,
	}
}

// Offer hands a sample to the runner without blocking. It reports whether
// the sample was accepted.
func (r *Runner) Offer(s domain.SensorSample) bool {
	select {
	case r.in <- s:
		return true
	default:
		return false
	}
}

// Run drains the channel until ctx is cancelled, then performs one final
// flush of whatever is buffered.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	batch := make([]domain.SensorSample, 0, r.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.sink.WriteBatch(batch); err != nil {
			log.Printf("archive: flush of %d samples failed: %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case s := <-r.in:
			batch = append(batch, s)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
