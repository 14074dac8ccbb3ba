// Package recorder ties the frontend, write buffer, source registry
// and scheduler into the single facade an embedding application drives
// (§6.2's LogManager). It owns session lifetime, rotation, and quota
// enforcement; everything else in this module is a supporting layer it
// composes.
package recorder

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skywing/fdrlog/internal/backend"
	"github.com/skywing/fdrlog/internal/buffer"
	"github.com/skywing/fdrlog/internal/circuit"
	"github.com/skywing/fdrlog/internal/datasource"
	"github.com/skywing/fdrlog/internal/ferr"
	"github.com/skywing/fdrlog/internal/frontend"
	"github.com/skywing/fdrlog/internal/logidx"
	"github.com/skywing/fdrlog/internal/metrics"
	"github.com/skywing/fdrlog/internal/registry"
)

// Config parameterizes a LogManager.
type Config struct {
	OutputDir           string
	FlushThreshold      int
	MinGuaranteedSpace  int
	SizeCapBytes        int64 // rotate when the active file reaches this size; 0 disables
	MaxLogCount         int   // on rotation, evict siblings until fewer than this many remain; 0 disables
	MinFreeBytes        int64 // on rotation, evict siblings while free space is below this; 0 disables
	TickPeriod          time.Duration
	EncryptionPubKeyPath string // optional
}

// LogManager is the embedding application's single entry point into
// the recording core.
type LogManager struct {
	cfg     Config
	quotaMu sync.Mutex // guards cfg.SizeCapBytes/MaxLogCount/MinFreeBytes, the fields UpdateQuota can change live
	logger  *logrus.Logger

	frontend  *frontend.Frontend
	buf       *buffer.Buffer
	registry  *registry.Registry
	scheduler *registry.Scheduler
	logIdx    *logidx.FileManager
	breaker   *circuit.Breaker

	coreEvents *registry.Bound
}

// New constructs a LogManager. Call Start before registering sources or
// ticking.
func New(cfg Config, logger *logrus.Logger) *LogManager {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = 100 * time.Millisecond
	}
	return &LogManager{
		cfg:    cfg,
		logger: logger,
		logIdx: logidx.NewFileManager(cfg.OutputDir, logger),
		breaker: circuit.New(circuit.Config{}),
	}
}

type coreEventSource struct{}

func (coreEventSource) Plugin() string          { return "event" }
func (coreEventSource) Name() string            { return "lifecycle" }
func (coreEventSource) Version() uint32         { return 1 }
func (coreEventSource) Kind() datasource.Kind   { return datasource.KindEvent }
func (coreEventSource) Period() time.Duration   { return 0 }

// Start prepares the output directory, loads the persisted lifetime
// index, and opens the first session.
func (lm *LogManager) Start() error {
	if err := os.MkdirAll(lm.cfg.OutputDir, 0o755); err != nil {
		return ferr.IO("recorder", "Start", err)
	}
	if err := lm.logIdx.Load(); err != nil {
		return err
	}

	lm.registry = registry.New()
	lm.frontend = frontend.New(lm.cfg.OutputDir, lm.logger)
	lm.coreEvents = lm.registry.Register(coreEventSource{})

	return lm.openSession(map[string]string{})
}

func (lm *LogManager) openSession(initial map[string]string) error {
	idx := lm.logIdx.Next()

	err := lm.breaker.Execute(func() error {
		return lm.frontend.Open(idx, initial)
	})
	if err != nil {
		return err
	}

	lm.buf = buffer.New(lm.frontend.Writer(), buffer.Config{
		FlushThreshold:     lm.cfg.FlushThreshold,
		MinGuaranteedSpace: lm.cfg.MinGuaranteedSpace,
	}, lm.logger)

	if lm.cfg.EncryptionPubKeyPath != "" {
		if err := lm.buf.EnableEncryption(lm.cfg.EncryptionPubKeyPath); err != nil {
			return err
		}
	}

	lm.scheduler = registry.NewScheduler(lm.registry, lm.buf, lm.logger)

	for _, b := range lm.registry.All() {
		if err := registry.WriteDescriptor(lm.frontend.Writer(), b); err != nil {
			return err
		}
	}

	metrics.OpenFiles.Set(1)
	return nil
}

// RegisterSource binds src to a fresh id and writes its SOURCE_DESC.
func (lm *LogManager) RegisterSource(src registry.Source) (*registry.Bound, error) {
	b := lm.registry.Register(src)
	if err := registry.WriteDescriptor(lm.frontend.Writer(), b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteDirect pushes one payload for a direct-writer source (Period()
// == 0), bypassing the scheduler entirely.
func (lm *LogManager) WriteDirect(b *registry.Bound, payload []byte) error {
	if err := registry.WritePayload(lm.buf, b, payload); err != nil {
		return err
	}
	metrics.EntriesWritten.WithLabelValues(b.Desc.Plugin).Inc()
	return nil
}

// Tick drives the scheduler once and then checks rotation triggers.
// The caller (the embedding application's own loop) decides the tick
// cadence; lm.cfg.TickPeriod is advisory, used only to flag overruns.
func (lm *LogManager) Tick(now time.Time) error {
	start := time.Now()
	lm.scheduler.Tick(now)
	if elapsed := time.Since(start); elapsed > lm.cfg.TickPeriod {
		metrics.TickOverruns.WithLabelValues("recorder", "tick").Inc()
	}

	sizeCapBytes, _, _ := lm.quotaSnapshot()
	if lm.frontend.QuotaCheck(sizeCapBytes) {
		return lm.Rotate(frontend.CloseReasonFileTooBig)
	}
	return nil
}

// Flush forces the write buffer to emit a block now.
func (lm *LogManager) Flush() error {
	return lm.buf.Flush()
}

// UpdateField rewrites a header field in the active session.
func (lm *LogManager) UpdateField(name, value string) error {
	return lm.frontend.UpdateField(name, value)
}

// UpdateQuota applies freshly reloaded quota/retention settings
// (size cap, max log count, min free space) without touching anything
// about the active session. Wired to internal/config's file watcher so
// an operator can retune retention live; everything else in cfg is
// only read once, at Start.
func (lm *LogManager) UpdateQuota(sizeCapBytes int64, maxLogCount int, minFreeBytes int64) {
	lm.quotaMu.Lock()
	defer lm.quotaMu.Unlock()
	lm.cfg.SizeCapBytes = sizeCapBytes
	lm.cfg.MaxLogCount = maxLogCount
	lm.cfg.MinFreeBytes = minFreeBytes
}

func (lm *LogManager) quotaSnapshot() (sizeCapBytes int64, maxLogCount int, minFreeBytes int64) {
	lm.quotaMu.Lock()
	defer lm.quotaMu.Unlock()
	return lm.cfg.SizeCapBytes, lm.cfg.MaxLogCount, lm.cfg.MinFreeBytes
}

// Rotate closes the active file for reason, renames it out of the way,
// evicts siblings to satisfy quota, and opens a fresh session.
func (lm *LogManager) Rotate(reason frontend.CloseReason) error {
	if err := lm.buf.Flush(); err != nil {
		lm.logger.WithError(err).Warn("flush before rotate failed")
	}

	// The dated-uuid rotation filename pattern additionally needs a
	// "ro.boot.uuid" system property (§4.4 item 3), sourced from a
	// property store this module doesn't implement (§1 Non-goals); with
	// it absent, RotateOut falls back to the plain "log-<idx>.bin" name.
	header := map[string]string{
		"date": lm.frontend.Field("date"),
	}
	lifetimeIdx := lm.frontend.LifetimeIdx()

	if err := lm.frontend.Close(reason); err != nil {
		return err
	}

	dst, _, err := lm.frontend.Backend().RotateOut(header, lifetimeIdx)
	if err != nil {
		return err
	}
	metrics.RotationsTotal.WithLabelValues(string(reason)).Inc()
	lm.logger.WithFields(logrus.Fields{"component": "recorder", "rotated_to": dst, "reason": reason}).Info("rotated session")

	_, maxLogCount, minFreeBytes := lm.quotaSnapshot()
	if maxLogCount > 0 || minFreeBytes > 0 {
		removeSize := int64(0)
		if minFreeBytes > 0 {
			if avail, err := lm.frontend.Backend().AvailableBytes(); err == nil && int64(avail) < minFreeBytes {
				removeSize = minFreeBytes - int64(avail)
			}
		}
		deleted, err := lm.frontend.Backend().EvictForSpace(removeSize, maxLogCount)
		if err != nil {
			lm.logger.WithError(err).Warn("eviction failed")
		}
		for _, d := range deleted {
			metrics.FilesDeleted.WithLabelValues(d.Takeoff).Inc()
		}
	}

	if err := lm.openSession(map[string]string{}); err != nil {
		return err
	}
	lm.emitLifecycleEvent("rotated", string(reason))
	return nil
}

// Stop flushes, closes the active session, and marks no file open.
func (lm *LogManager) Stop() error {
	if err := lm.buf.Flush(); err != nil {
		lm.logger.WithError(err).Warn("flush on stop failed")
	}
	err := lm.frontend.Close(frontend.CloseReasonExiting)
	metrics.OpenFiles.Set(0)
	return err
}

// emitLifecycleEvent records a core lifecycle occurrence (e.g. a
// rotation and its reason) as an EVT: record under the reserved
// lifecycle event source, best-effort.
func (lm *LogManager) emitLifecycleEvent(name, arg string) {
	payload := datasource.EncodeEvent(datasource.Event{
		TimestampUS: time.Now().UnixMicro(),
		Name:        name,
		Params:      []datasource.Param{{Name: "reason", Value: arg}},
	})
	if err := lm.WriteDirect(lm.coreEvents, payload); err != nil {
		lm.logger.WithError(err).Warn("failed to emit lifecycle event")
	}
}

// Backend exposes the active frontend's backend for callers that need
// direct filesystem queries (used by cmd/fdr-agent's status surface).
func (lm *LogManager) Backend() *backend.Backend { return lm.frontend.Backend() }
