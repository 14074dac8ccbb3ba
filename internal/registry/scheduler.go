package registry

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skywing/fdrlog/internal/ferr"
	"github.com/skywing/fdrlog/internal/metrics"
)

// Poller is implemented by sources the Scheduler drives on a timer.
// Returning (nil, nil) skips the tick with no error; returning a
// KindSource error per §7 skips it too, logged at debug level only. Any
// other error also skips the tick, logged as a warning and counted in
// metrics.DecodeErrors.
type Poller interface {
	Source
	Poll(now time.Time) ([]byte, error)
}

// Scheduler runs every registered Poller round-robin from a single
// goroutine: no worker pool, no concurrent source callbacks (§5). A
// source with Period()==0 is never ticked here — it is a direct-writer,
// pushed by the recorder outside this loop.
type Scheduler struct {
	registry *Registry
	sink     Pusher
	logger   *logrus.Logger

	deadlines map[uint32]time.Time
}

// NewScheduler builds a Scheduler over registry, pushing payloads into
// sink (the write-side buffer).
func NewScheduler(registry *Registry, sink Pusher, logger *logrus.Logger) *Scheduler {
	return &Scheduler{registry: registry, sink: sink, logger: logger, deadlines: map[uint32]time.Time{}}
}

// Tick visits every periodic source whose deadline has passed, in
// registration order, polling and emitting at most one payload each.
// The caller supplies now so behavior is deterministic under test.
func (s *Scheduler) Tick(now time.Time) {
	for _, b := range s.registry.All() {
		if b.Source.Period() <= 0 {
			continue
		}
		poller, ok := b.Source.(Poller)
		if !ok {
			continue
		}

		deadline, seen := s.deadlines[b.ID]
		if seen && now.Before(deadline) {
			continue
		}
		s.deadlines[b.ID] = now.Add(b.Source.Period())

		payload, err := poller.Poll(now)
		if err != nil {
			if ferr.Is(err, ferr.KindSource) {
				s.logger.WithFields(logrus.Fields{"component": "scheduler", "source": b.Desc.Name}).
					Debug("source skipped this tick")
				continue
			}
			metrics.DecodeErrors.WithLabelValues("source_poll").Inc()
			s.logger.WithError(err).WithField("source", b.Desc.Name).Warn("source poll failed")
			continue
		}
		if payload == nil {
			continue
		}

		if err := WritePayload(s.sink, b, payload); err != nil {
			s.logger.WithError(err).WithField("source", b.Desc.Name).Warn("failed to write source payload")
			continue
		}
		metrics.EntriesWritten.WithLabelValues(b.Desc.Plugin).Inc()
	}
}
