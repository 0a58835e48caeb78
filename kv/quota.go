package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrQuotaExceeded is returned when a write would exceed a storage area quota.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Quota holds the limits of a storage area. Zero fields are unlimited.
type Quota struct {
	// BytesPerItem limits len(key)+len(value) of a single item.
	BytesPerItem int
	// BytesPerBatch limits the summed item size of one Set.
	BytesPerBatch int
	// WritesPerMinute limits Set and Remove calls per minute.
	WritesPerMinute int
	// WritesPerHour limits Set and Remove calls per hour.
	WritesPerHour int
}

// SyncQuota mirrors the limits browsers place on their synced storage area.
var SyncQuota = Quota{
	BytesPerItem:    8192,
	BytesPerBatch:   102400,
	WritesPerMinute: 120,
	WritesPerHour:   1800,
}

// QuotaStore enforces a Quota in front of another Store.
// Writes over the limit fail immediately with ErrQuotaExceeded; they are never queued.
type QuotaStore struct {
	inner  Store
	quota  Quota
	minute *rate.Limiter
	hour   *rate.Limiter
	now    func() time.Time
}

// NewQuotaStore wraps inner with the given quota.
func NewQuotaStore(inner Store, q Quota) *QuotaStore {
	s := &QuotaStore{inner: inner, quota: q, now: time.Now}
	if q.WritesPerMinute > 0 {
		s.minute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(q.WritesPerMinute)), q.WritesPerMinute)
	}
	if q.WritesPerHour > 0 {
		s.hour = rate.NewLimiter(rate.Every(time.Hour/time.Duration(q.WritesPerHour)), q.WritesPerHour)
	}
	return s
}

// Quota returns the enforced limits.
func (s *QuotaStore) Quota() Quota {
	return s.quota
}

// Get is not limited.
func (s *QuotaStore) Get(ctx context.Context, keys ...string) (Items, error) {
	return s.inner.Get(ctx, keys...)
}

// Set checks item and batch sizes and the write rate before writing.
func (s *QuotaStore) Set(ctx context.Context, items Items) error {
	total := 0
	for _, k := range items.Keys() {
		size := len(k) + len(items[k])
		if s.quota.BytesPerItem > 0 && size > s.quota.BytesPerItem {
			return fmt.Errorf("%w: item %q is %d bytes, limit %d", ErrQuotaExceeded, k, size, s.quota.BytesPerItem)
		}
		total += size
	}
	if s.quota.BytesPerBatch > 0 && total > s.quota.BytesPerBatch {
		return fmt.Errorf("%w: batch is %d bytes, limit %d", ErrQuotaExceeded, total, s.quota.BytesPerBatch)
	}
	if err := s.reserveWrite(); err != nil {
		return err
	}
	return s.inner.Set(ctx, items)
}

// Remove checks the write rate before deleting.
func (s *QuotaStore) Remove(ctx context.Context, keys ...string) error {
	if err := s.reserveWrite(); err != nil {
		return err
	}
	return s.inner.Remove(ctx, keys...)
}

func (s *QuotaStore) reserveWrite() error {
	now := s.now()
	var reserved []*rate.Reservation
	for _, l := range []*rate.Limiter{s.minute, s.hour} {
		if l == nil {
			continue
		}
		r := l.ReserveN(now, 1)
		if !r.OK() || r.DelayFrom(now) > 0 {
			r.CancelAt(now)
			for _, prev := range reserved {
				prev.CancelAt(now)
			}
			return fmt.Errorf("%w: too many write operations", ErrQuotaExceeded)
		}
		reserved = append(reserved, r)
	}
	return nil
}
