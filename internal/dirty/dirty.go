// Package dirty tracks modified byte ranges of simulated physical memory and
// writes them back to the backing file in page-aligned, coalesced batches.
package dirty

import (
	"context"
	"sort"
)

// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
const defaultRangeCapacity = 64

// Backing is the memory whose ranges are tracked.
type Backing interface {
	Bytes() []byte
	FlushRange(off, n int) error
}

// Range is a dirty byte range (absolute offsets into the backing).
type Range struct {
	Off int64
	Len int64
}

// Tracker accumulates dirty ranges and flushes them on demand.
//
// NOT thread-safe. The simulated kernel serializes access.
type Tracker struct {
	b        Backing
	ranges   []Range // coalesced at flush time
	pageSize int64
}

// NewTracker creates a tracker over b. pageSize must be the page size the
// backing was mapped with; flushes start on page boundaries.
func NewTracker(b Backing, pageSize int) *Tracker {
	if pageSize <= 0 {
		pageSize = 4096
	}
	return &Tracker{
		b:        b,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: int64(pageSize),
	}
}

// Add records a dirty range. Empty ranges are ignored.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{
		Off: int64(off),
		Len: int64(length),
	})
}

// Pending returns the number of raw ranges waiting for a flush.
func (t *Tracker) Pending() int {
	return len(t.ranges)
}

// Flush writes every dirty range back and clears the tracker.
//
// If ctx is cancelled part way through, ranges already written stay written
// and the remaining ones are kept for the next flush.
func (t *Tracker) Flush(ctx context.Context) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	limit := int64(len(t.b.Bytes()))
	for _, r := range t.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := r.Off + r.Len
		if end > limit {
			end = limit
		}
		if r.Off >= end {
			continue
		}
		if err := t.b.FlushRange(int(r.Off), int(end-r.Off)); err != nil {
			return err
		}
	}

	t.ranges = t.ranges[:0]
	return nil
}

// Reset drops all tracked ranges without flushing.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping/adjacent ranges.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize

		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}

		aligned[i] = Range{
			Off: start,
			Len: end - start,
		}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]

	for i := 1; i < len(aligned); i++ {
		next := aligned[i]

		if next.Off <= current.Off+current.Len {
			end := current.Off + current.Len
			nextEnd := next.Off + next.Len
			if nextEnd > end {
				end = nextEnd
			}
			current.Len = end - current.Off
		} else {
			merged = append(merged, current)
			current = next
		}
	}

	merged = append(merged, current)

	return merged
}
