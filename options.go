package recordkv

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/hupe1980/recordkv/codec"
	"github.com/hupe1980/recordkv/kv"
)

type options struct {
	stores           map[Area]kv.Store
	syncQuota        *kv.Quota
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	newID            func() string
	idAttribute      string
	orderedDelete    bool
}

// Option configures an Adapter.
type Option func(*options)

// WithStore sets the backend of a storage area. Areas without a store use a
// fresh kv.MemoryStore. The adapter does not close stores passed here.
//
// Example with Pebble as the local area:
//
//	db, _ := pebble.Open("./data", nil)
//	defer db.Close()
//	a, _ := recordkv.New("todos", recordkv.AreaLocal, recordkv.WithStore(recordkv.AreaLocal, db))
func WithStore(area Area, store kv.Store) Option {
	return func(o *options) {
		if area == AreaDefault {
			area = AreaLocal
		}
		o.stores[area] = store
	}
}

// WithSyncQuota sets the quota enforced on the sync area.
// Pass nil to disable quota enforcement. Defaults to kv.SyncQuota.
func WithSyncQuota(q *kv.Quota) Option {
	return func(o *options) {
		o.syncQuota = q
	}
}

// WithCodec configures the codec of stored records and the record index.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &recordkv.BasicMetricsCollector{}
//	a, _ := recordkv.New("todos", recordkv.AreaLocal, recordkv.WithMetricsCollector(metrics))
//	// ... use a ...
//	stats := metrics.GetStats()
//	fmt.Printf("Saves: %d, Avg latency: %dns\n", stats.SaveCount, stats.SaveAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithIDGenerator replaces the random UUID generator used for new records.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithIDAttribute sets the attribute the record id is stored under.
// Defaults to "id".
func WithIDAttribute(name string) Option {
	return func(o *options) {
		if name != "" {
			o.idAttribute = name
		}
	}
}

// WithOrderedDelete makes delete persist the shrunk record index before it
// removes the record bodies, instead of issuing both calls at once. A failure
// then leaves orphaned bodies but never an index entry without a body.
func WithOrderedDelete(ordered bool) Option {
	return func(o *options) {
		o.orderedDelete = ordered
	}
}

func applyOptions(optFns []Option) options {
	quota := kv.SyncQuota
	o := options{
		stores:           make(map[Area]kv.Store),
		syncQuota:        &quota,
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		newID:            uuid.NewString,
		idAttribute:      "id",
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
