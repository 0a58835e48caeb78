package recordkv

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// See package prommetrics for a Prometheus implementation.
type MetricsCollector interface {
	// RecordSave is called after each create or update.
	// records is the number of records written, err is nil if successful.
	RecordSave(records int, duration time.Duration, err error)

	// RecordFetch is called after each read with the number of records read.
	RecordFetch(records int, duration time.Duration, err error)

	// RecordDestroy is called after each delete.
	RecordDestroy(records int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSave(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordFetch(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordDestroy(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	SaveCount       atomic.Int64
	SaveErrors      atomic.Int64
	SaveRecords     atomic.Int64
	SaveTotalNanos  atomic.Int64
	FetchCount      atomic.Int64
	FetchErrors     atomic.Int64
	FetchRecords    atomic.Int64
	FetchTotalNanos atomic.Int64
	DestroyCount    atomic.Int64
	DestroyErrors   atomic.Int64
	DestroyRecords  atomic.Int64
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(records int, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveRecords.Add(int64(records))
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(records int, duration time.Duration, err error) {
	b.FetchCount.Add(1)
	b.FetchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FetchErrors.Add(1)
		return
	}
	b.FetchRecords.Add(int64(records))
}

// RecordDestroy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDestroy(records int, _ time.Duration, err error) {
	b.DestroyCount.Add(1)
	if err != nil {
		b.DestroyErrors.Add(1)
		return
	}
	b.DestroyRecords.Add(int64(records))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SaveCount:      b.SaveCount.Load(),
		SaveErrors:     b.SaveErrors.Load(),
		SaveRecords:    b.SaveRecords.Load(),
		SaveAvgNanos:   avg(b.SaveTotalNanos.Load(), b.SaveCount.Load()),
		FetchCount:     b.FetchCount.Load(),
		FetchErrors:    b.FetchErrors.Load(),
		FetchRecords:   b.FetchRecords.Load(),
		FetchAvgNanos:  avg(b.FetchTotalNanos.Load(), b.FetchCount.Load()),
		DestroyCount:   b.DestroyCount.Load(),
		DestroyErrors:  b.DestroyErrors.Load(),
		DestroyRecords: b.DestroyRecords.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SaveCount      int64
	SaveErrors     int64
	SaveRecords    int64
	SaveAvgNanos   int64
	FetchCount     int64
	FetchErrors    int64
	FetchRecords   int64
	FetchAvgNanos  int64
	DestroyCount   int64
	DestroyErrors  int64
	DestroyRecords int64
}
