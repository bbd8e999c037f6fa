// Package data provides historical market data access: a CSV-backed
// store, an in-memory cache, and a synthetic sample generator.
package data

import (
	"context"
	"time"

	"github.com/glowback/glowback/internal/types"
)

// Manager loads historical bars for a symbol over a date range.
// Implementations are expected to return bars in chronological order.
type Manager interface {
	LoadBars(ctx context.Context, symbol types.Symbol, start, end time.Time, resolution types.Resolution) ([]types.Bar, error)
}
