package streaming

import (
	"log"
	"sort"
	"sync"
	"time"
)

// BufferConfig tunes the adaptive buffer's size thresholds.
type BufferConfig struct {
	MinBufferSize  int64
	MaxBufferSize  int64
	TargetDuration time.Duration
	LowWatermark   int64
	HighWatermark  int64
}

// DefaultBufferConfig is the stock media-buffering profile: 64KB
// minimum, 16MB maximum, a 10 second target duration, and 256KB/8MB
// low/high watermarks.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		MinBufferSize:  64 * 1024,
		MaxBufferSize:  16 * 1024 * 1024,
		TargetDuration: 10 * time.Second,
		LowWatermark:   256 * 1024,
		HighWatermark:  8 * 1024 * 1024,
	}
}

// BufferedRange is a contiguous span of stream bytes held in memory,
// anchored at Start.
type BufferedRange struct {
	Start int64
	Data  []byte
}

// End returns the first byte offset past this range.
func (r BufferedRange) End() int64 { return r.Start + int64(len(r.Data)) }

// Contains reports whether pos falls within this range.
func (r BufferedRange) Contains(pos int64) bool {
	return pos >= r.Start && pos < r.End()
}

// AdaptiveBuffer holds buffered byte ranges of a stream and grows its
// retention target as sustained playback consumes data faster than
// the configured minimum, while never allowing the total buffered
// size to exceed MaxBufferSize even momentarily.
type AdaptiveBuffer struct {
	mu             sync.Mutex
	config         BufferConfig
	ranges         []BufferedRange // kept sorted by Start
	totalBuffered  int64
	streamSize     int64
	readPosition   int64
	bytesConsumed  int64
	lastAdaptCheck int64
	adaptiveTarget int64
}

// NewAdaptiveBuffer returns a buffer for a stream of the given total
// size (0 if unknown, e.g. a live stream).
func NewAdaptiveBuffer(config BufferConfig, streamSize int64) *AdaptiveBuffer {
	return &AdaptiveBuffer{
		config:         config,
		streamSize:     streamSize,
		adaptiveTarget: config.MinBufferSize,
	}
}

// AddData inserts data at the given stream offset. Eviction happens
// BEFORE the insert so the buffer never exceeds MaxBufferSize even
// momentarily. A chunk larger than MaxBufferSize is truncated to fit,
// with a warning, rather than rejected outright. Adding empty data is
// a no-op.
func (b *AdaptiveBuffer) AddData(start int64, data []byte) {
	if len(data) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.totalBuffered+int64(len(data)) > b.config.MaxBufferSize {
		b.evictToMakeRoom(int64(len(data)))
	}

	if int64(len(data)) > b.config.MaxBufferSize {
		log.Printf("streaming: chunk of %d bytes exceeds max buffer size %d, truncating", len(data), b.config.MaxBufferSize)
		data = data[:b.config.MaxBufferSize]
	}

	b.ranges = append(b.ranges, BufferedRange{Start: start, Data: data})
	sort.Slice(b.ranges, func(i, j int) bool { return b.ranges[i].Start < b.ranges[j].Start })
	b.totalBuffered += int64(len(data))
}

// evictToMakeRoom drops whole buffered ranges until needed more bytes
// would fit under MaxBufferSize: ranges already fully behind the read
// cursor go first, then the oldest remaining ranges. Assumes b.mu is
// held. Ranges are not merged on insert or considered for partial
// eviction; the ranges slice stays sorted by start so "oldest" is
// always index zero.
func (b *AdaptiveBuffer) evictToMakeRoom(needed int64) {
	target := b.config.MaxBufferSize - needed
	if target < 0 {
		target = 0
	}
	for b.totalBuffered > target && len(b.ranges) > 0 {
		victim := 0
		for i, r := range b.ranges {
			if r.End() <= b.readPosition {
				victim = i
				break
			}
		}
		b.totalBuffered -= int64(len(b.ranges[victim].Data))
		b.ranges = append(b.ranges[:victim], b.ranges[victim+1:]...)
	}
}

// Read returns up to length bytes starting at the current read
// cursor, drawn from a single buffered range (the read is trimmed to
// that range's end if it runs past it), and advances the cursor and
// consumption counters used by the adaptive-target growth trigger. It
// fails with ErrCodeBufferUnderrun if the cursor isn't currently
// inside any buffered range.
func (b *AdaptiveBuffer) Read(length int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	position := b.readPosition
	for _, r := range b.ranges {
		if !r.Contains(position) {
			continue
		}
		offset := position - r.Start
		end := offset + int64(length)
		if end > int64(len(r.Data)) {
			end = int64(len(r.Data))
		}
		out := r.Data[offset:end]

		b.readPosition = position + int64(len(out))
		b.bytesConsumed += int64(len(out))
		b.maybeAdapt()
		return out, nil
	}
	return nil, &StreamingError{Code: ErrCodeBufferUnderrun, Message: "no buffered data at the current read cursor"}
}

// Seek moves the read position without touching buffered data. It
// rejects positions beyond a known stream size, leaving the cursor
// unchanged, and otherwise returns true iff the new position falls
// inside a currently buffered range.
func (b *AdaptiveBuffer) Seek(position int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamSize > 0 && position > b.streamSize {
		return false
	}
	b.readPosition = position
	for _, r := range b.ranges {
		if r.Contains(position) {
			return true
		}
	}
	return false
}

// IsBuffered reports whether [start, start+length) is fully covered
// by a single buffered range.
func (b *AdaptiveBuffer) IsBuffered(start int64, length int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := start + length
	for _, r := range b.ranges {
		if r.Start <= start && r.End() >= end {
			return true
		}
	}
	return false
}

// BufferedRanges returns a snapshot of the currently buffered ranges,
// sorted by start offset.
func (b *AdaptiveBuffer) BufferedRanges() []BufferedRange {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BufferedRange, len(b.ranges))
	copy(out, b.ranges)
	return out
}

// Clear discards all buffered data, resets the read cursor to 0, and
// resets consumption tracking.
func (b *AdaptiveBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ranges = nil
	b.totalBuffered = 0
	b.bytesConsumed = 0
	b.lastAdaptCheck = 0
	b.readPosition = 0
}

// NeedsMoreData reports whether the total buffered size has fallen
// below the low watermark, signalling the fetch loop to refill.
func (b *AdaptiveBuffer) NeedsMoreData() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBuffered < b.config.LowWatermark
}

// IsFull reports whether the total buffered size has reached the high
// watermark, signalling the fetch loop to pause.
func (b *AdaptiveBuffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBuffered >= b.config.HighWatermark
}

// TotalBuffered returns the current total buffered byte count.
func (b *AdaptiveBuffer) TotalBuffered() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBuffered
}

// AdaptiveTarget returns the buffer's current growth target.
func (b *AdaptiveBuffer) AdaptiveTarget() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adaptiveTarget
}

// maybeAdapt grows the adaptive target every HighWatermark/8 bytes of
// sustained consumption, by 1.5x, capped at MaxBufferSize. Assumes
// b.mu is held.
func (b *AdaptiveBuffer) maybeAdapt() {
	step := b.config.HighWatermark / 8
	if step <= 0 || b.bytesConsumed-b.lastAdaptCheck < step {
		return
	}
	b.lastAdaptCheck = b.bytesConsumed
	grown := (b.adaptiveTarget * 3) / 2
	if grown > b.config.MaxBufferSize {
		grown = b.config.MaxBufferSize
	}
	b.adaptiveTarget = grown
}
