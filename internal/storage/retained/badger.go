package retained

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	keyCurrent       = []byte("image/current")
	keyHistoryPrefix = []byte("image/history/")
)

// ErrClosed is returned by operations on a closed BadgerMemory.
var ErrClosed = errors.New("retained: memory closed")

// BadgerConfig configures the host retention emulation.
type BadgerConfig struct {
	// Dir is the Badger data directory.
	Dir string

	// Size is the retained area size in bytes.
	Size int

	// RetainImages is how many synced images are kept in the history.
	// Zero disables the history.
	RetainImages int

	// GCInterval is the interval between automatic value-log GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the value-log discard ratio (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// SyncWrites fsyncs after every transaction.
	// Default: true (Sync is the power-down commit point)
	SyncWrites bool
}

// DefaultBadgerConfig returns the default configuration for dir.
func DefaultBadgerConfig(dir string, size int) BadgerConfig {
	return BadgerConfig{
		Dir:          dir,
		Size:         size,
		RetainImages: 8,
		GCInterval:   "10m",
		GCThreshold:  0.5,
		SyncWrites:   true,
	}
}

// ImageInfo describes one entry of the image history.
type ImageInfo struct {
	ID   ulid.ULID `json:"id" yaml:"id"`
	Time time.Time `json:"time" yaml:"time"`
	Size int       `json:"size" yaml:"size"`
}

// BadgerMemory keeps the retained area in a Badger store.
type BadgerMemory struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	mu     sync.Mutex
	buf    []byte
	closed bool

	lastGCTime atomic.Int64 // Unix milliseconds
	lastSync   atomic.Int64 // Unix milliseconds

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastSync     prometheus.Gauge
	metricsImages       prometheus.Gauge

	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenBadger opens (or creates) the store in cfg.Dir and loads the current
// image. A stored image whose size differs from cfg.Size belongs to another
// layout and is ignored; the area starts zeroed.
func OpenBadger(cfg BadgerConfig, logger *slog.Logger) (*BadgerMemory, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("retained: dir is required")
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("retained: size must be positive, got %d", cfg.Size)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("retained: open db: %w", err)
	}

	m := &BadgerMemory{
		db:     db,
		cfg:    cfg,
		logger: logger,
		buf:    make([]byte, cfg.Size),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if err := m.load(); err != nil {
		db.Close()
		return nil, err
	}

	go m.gcLoop()

	logger.Info("retained memory opened",
		"dir", cfg.Dir,
		"size", cfg.Size,
		"retain_images", cfg.RetainImages)

	return m, nil
}

func (m *BadgerMemory) load() error {
	return m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyCurrent)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("retained: load image: %w", err)
		}
		return item.Value(func(v []byte) error {
			if len(v) != len(m.buf) {
				m.logger.Warn("stored image size does not match layout, starting empty",
					"stored", len(v),
					"size", len(m.buf))
				return nil
			}
			copy(m.buf, v)
			return nil
		})
	})
}

// Bytes returns the live area.
func (m *BadgerMemory) Bytes() []byte { return m.buf }

// Sync writes the current area and appends it to the image history.
func (m *BadgerMemory) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	image := bytes.Clone(m.buf)
	id := ulid.Make()

	err := m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyCurrent, image); err != nil {
			return err
		}
		if m.cfg.RetainImages > 0 {
			return txn.Set(historyKey(id), image)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("retained: sync: %w", err)
	}
	m.lastSync.Store(time.Now().UnixMilli())

	pruned, err := m.prune()
	if err != nil {
		return fmt.Errorf("retained: prune history: %w", err)
	}

	m.logger.Debug("retained memory synced",
		"image", id.String(),
		"pruned", pruned)

	m.refreshMetrics()
	return nil
}

func historyKey(id ulid.ULID) []byte {
	key := make([]byte, 0, len(keyHistoryPrefix)+ulid.EncodedSize)
	key = append(key, keyHistoryPrefix...)
	return append(key, id.String()...)
}

// prune drops the oldest history entries beyond RetainImages. ULID keys
// sort by creation time, so the oldest come first.
func (m *BadgerMemory) prune() (int, error) {
	keys, err := m.historyKeys()
	if err != nil {
		return 0, err
	}
	excess := len(keys) - m.cfg.RetainImages
	if excess <= 0 {
		return 0, nil
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys[:excess] {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return excess, nil
}

func (m *BadgerMemory) historyKeys() ([][]byte, error) {
	var keys [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyHistoryPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// History lists the retained images, oldest first.
func (m *BadgerMemory) History(ctx context.Context) ([]ImageInfo, error) {
	var out []ImageInfo
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyHistoryPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id, err := ulid.ParseStrict(string(item.Key()[len(keyHistoryPrefix):]))
			if err != nil {
				m.logger.Warn("skipping malformed history key", "key", string(item.Key()))
				continue
			}
			out = append(out, ImageInfo{
				ID:   id,
				Time: ulid.Time(id.Time()),
				Size: int(item.ValueSize()),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retained: list history: %w", err)
	}
	return out, nil
}

// Image returns a copy of the history image with the given id.
func (m *BadgerMemory) Image(ctx context.Context, id ulid.ULID) ([]byte, error) {
	var out []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(historyKey(id))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("retained: image %s: %w", id, err)
	}
	return out, nil
}

// GC runs value-log garbage collection until nothing is left to rewrite.
func (m *BadgerMemory) GC(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := m.db.RunValueLogGC(m.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return fmt.Errorf("retained: gc: %w", err)
		}
	}
	m.lastGCTime.Store(time.Now().UnixMilli())
	return nil
}

// Close stops background work and closes the store. Unsynced changes to the
// area are lost.
func (m *BadgerMemory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	<-m.doneCh

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("retained: close db: %w", err)
	}
	m.logger.Info("retained memory closed")
	return nil
}

// RegisterMetrics registers the store gauges with registry.
// Returns the memory for method chaining.
func (m *BadgerMemory) RegisterMetrics(registry prometheus.Registerer) *BadgerMemory {
	m.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "picoretain",
		Subsystem: "retained",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	m.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "picoretain",
		Subsystem: "retained",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	m.metricsLastSync = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "picoretain",
		Subsystem: "retained",
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix timestamp of the last successful sync",
	})
	m.metricsImages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "picoretain",
		Subsystem: "retained",
		Name:      "history_images",
		Help:      "Number of images kept in the history",
	})

	registry.MustRegister(
		m.metricsLSMSize,
		m.metricsValueLogSize,
		m.metricsLastSync,
		m.metricsImages,
	)
	m.refreshMetrics()
	return m
}

func (m *BadgerMemory) refreshMetrics() {
	if m.metricsLSMSize == nil {
		return
	}
	lsm, vlog := m.db.Size()
	m.metricsLSMSize.Set(float64(lsm))
	m.metricsValueLogSize.Set(float64(vlog))
	if ts := m.lastSync.Load(); ts > 0 {
		m.metricsLastSync.Set(float64(ts) / 1000.0)
	}
	if keys, err := m.historyKeys(); err == nil {
		m.metricsImages.Set(float64(len(keys)))
	}
}

// gcLoop runs periodic garbage collection and metric refreshes.
func (m *BadgerMemory) gcLoop() {
	defer close(m.doneCh)

	interval, err := time.ParseDuration(m.cfg.GCInterval)
	if err != nil || interval <= 0 {
		m.logger.Error("invalid gc_interval, using default 10m", "value", m.cfg.GCInterval)
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := m.GC(ctx); err != nil {
				m.logger.Error("auto gc failed", "error", err)
			}
			cancel()
			m.refreshMetrics()

		case <-m.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
