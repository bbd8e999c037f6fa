// Package simulator indexes historical market events by timestamp and
// exposes chronological advancement for backtesting.
package simulator

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/glowback/glowback/internal/types"
)

// Simulator replays loaded market data in strict time order. Each call
// to NextEvents returns the complete cross-section of events at the
// next timestamp, so the caller never observes a partial view of the
// market at one instant.
type Simulator struct {
	logger *slog.Logger

	events map[int64][]types.MarketEvent
	keys   []int64 // sorted unix-nano timestamps, built at initialize

	start   time.Time
	end     time.Time
	current time.Time
	cursor  int

	initialized bool
}

// New creates an empty simulator.
func New(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		logger: logger,
		events: make(map[int64][]types.MarketEvent),
	}
}

// AddDataFeed indexes the bars for one symbol. Bars for different
// symbols sharing a timestamp merge into the same instant.
func (s *Simulator) AddDataFeed(symbol types.Symbol, bars []types.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: no bars for %s", types.ErrInsufficientData, symbol)
	}

	for _, bar := range bars {
		if bar.Symbol != symbol {
			return fmt.Errorf("%w: bar for %s in feed for %s", types.ErrInvalidSymbol, bar.Symbol, symbol)
		}
		key := bar.Timestamp.UnixNano()
		s.events[key] = append(s.events[key], types.NewBarEvent(bar))
	}
	s.initialized = false

	s.logger.Debug("data feed added", "symbol", symbol.String(), "bars", len(bars))
	return nil
}

// Initialize builds the time index and positions the clock just before
// the first event. Fails when no feed was added.
func (s *Simulator) Initialize() error {
	if len(s.events) == 0 {
		return fmt.Errorf("%w: no data feeds added", types.ErrInsufficientData)
	}

	s.keys = s.keys[:0]
	for key := range s.events {
		s.keys = append(s.keys, key)
	}
	sort.Slice(s.keys, func(i, j int) bool { return s.keys[i] < s.keys[j] })

	s.start = time.Unix(0, s.keys[0]).UTC()
	s.end = time.Unix(0, s.keys[len(s.keys)-1]).UTC()
	s.current = s.start.Add(-time.Nanosecond)
	s.cursor = 0
	s.initialized = true

	s.logger.Info("simulator initialized",
		"instants", len(s.keys),
		"start", s.start,
		"end", s.end)
	return nil
}

// NextEvents advances to the next strictly-later timestamp and returns
// every event at that instant, ordered by ticker for determinism.
// Returns an empty slice once the data is exhausted.
func (s *Simulator) NextEvents() []types.MarketEvent {
	if !s.initialized || s.cursor >= len(s.keys) {
		return nil
	}

	for s.cursor < len(s.keys) && s.keys[s.cursor] <= s.current.UnixNano() {
		s.cursor++
	}
	if s.cursor >= len(s.keys) {
		return nil
	}

	key := s.keys[s.cursor]
	s.cursor++
	s.current = time.Unix(0, key).UTC()

	batch := make([]types.MarketEvent, len(s.events[key]))
	copy(batch, s.events[key])
	sort.Slice(batch, func(i, j int) bool {
		return batch[i].Symbol.Ticker < batch[j].Symbol.Ticker
	})
	return batch
}

// IsComplete returns true once every loaded instant has been returned.
func (s *Simulator) IsComplete() bool {
	return s.initialized && s.cursor >= len(s.keys)
}

// Reset rewinds the clock to the start without discarding loaded feeds.
func (s *Simulator) Reset() {
	if !s.initialized {
		return
	}
	s.current = s.start.Add(-time.Nanosecond)
	s.cursor = 0
}

// CurrentTime returns the simulated clock.
func (s *Simulator) CurrentTime() time.Time {
	return s.current
}

// Start returns the first loaded timestamp.
func (s *Simulator) Start() time.Time {
	return s.start
}

// End returns the last loaded timestamp.
func (s *Simulator) End() time.Time {
	return s.end
}

// Progress reports the monotonic fraction in [0,1] of elapsed
// wall-clock span, independent of event density.
func (s *Simulator) Progress() float64 {
	if !s.initialized {
		return 0
	}
	span := s.end.Sub(s.start)
	if span <= 0 {
		if s.cursor > 0 {
			return 1
		}
		return 0
	}
	elapsed := s.current.Sub(s.start)
	if elapsed < 0 {
		return 0
	}
	p := float64(elapsed) / float64(span)
	if p > 1 {
		return 1
	}
	return p
}

// EventCount returns the number of distinct timestamps loaded.
func (s *Simulator) EventCount() int {
	return len(s.keys)
}
