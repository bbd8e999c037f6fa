package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSymbol() types.Symbol {
	return types.NewEquity("AAPL", "NASDAQ")
}

func newManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg, dec("100000"), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func marketBuy(qty string) *types.Order {
	return types.NewMarketOrder(testSymbol(), types.SideBuy, dec(qty), "test")
}

func TestOrderPassesBasicChecks(t *testing.T) {
	m := newManager(t, DefaultConfig())
	result := m.CheckOrder(marketBuy("10"), dec("150"), dec("100000"))
	if !result.Approved {
		t.Fatalf("order rejected: %s", result.Reason)
	}
}

func TestMaxOrderNotionalRejection(t *testing.T) {
	m := newManager(t, DefaultConfig())
	// 1000 shares at 150 is 150k notional against the 100k limit.
	result := m.CheckOrder(marketBuy("1000"), dec("150"), dec("100000"))
	if result.Approved {
		t.Fatal("order approved, want notional rejection")
	}
	if !strings.Contains(result.Reason, "notional") {
		t.Errorf("reason = %q, want notional mention", result.Reason)
	}
}

func TestCircuitBreakerTripsOnDailyLoss(t *testing.T) {
	m := newManager(t, DefaultConfig())

	// Equity down 6% against the 5% threshold.
	result := m.CheckOrder(marketBuy("1"), dec("150"), dec("94000"))
	if result.Approved {
		t.Fatal("order approved, want circuit breaker rejection")
	}
	if !m.CircuitBreakerTripped() {
		t.Fatal("breaker not tripped")
	}
	if m.CircuitBreakerTrippedAt().IsZero() {
		t.Error("tripped time not recorded")
	}

	// Once tripped, every subsequent order is rejected even with
	// equity recovered.
	result = m.CheckOrder(marketBuy("1"), dec("150"), dec("100000"))
	if result.Approved {
		t.Fatal("order approved while breaker tripped")
	}
}

func TestCircuitBreakerResetDaily(t *testing.T) {
	m := newManager(t, DefaultConfig())

	m.CheckOrder(marketBuy("1"), dec("150"), dec("94000"))
	if !m.CircuitBreakerTripped() {
		t.Fatal("breaker not tripped")
	}

	m.ResetDaily(dec("95000"))
	if m.CircuitBreakerTripped() {
		t.Fatal("breaker still tripped after reset")
	}

	result := m.CheckOrder(marketBuy("1"), dec("150"), dec("95000"))
	if !result.Approved {
		t.Fatalf("order rejected after reset: %s", result.Reason)
	}
}

func TestOrderRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrdersPerWindow = 3
	cfg.OrderWindow = time.Minute
	m := newManager(t, cfg)

	for i := 0; i < 3; i++ {
		if r := m.CheckOrder(marketBuy("1"), dec("150"), dec("100000")); !r.Approved {
			t.Fatalf("order %d rejected: %s", i+1, r.Reason)
		}
	}
	if r := m.CheckOrder(marketBuy("1"), dec("150"), dec("100000")); r.Approved {
		t.Fatal("fourth order approved, want rate limit rejection")
	}
}

func TestRejectionsDoNotCountAgainstRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrdersPerWindow = 2
	m := newManager(t, cfg)

	// Notional rejections leave the rate budget untouched.
	for i := 0; i < 5; i++ {
		m.CheckOrder(marketBuy("1000"), dec("150"), dec("100000"))
	}
	if r := m.CheckOrder(marketBuy("1"), dec("150"), dec("100000")); !r.Approved {
		t.Fatalf("order rejected: %s", r.Reason)
	}
}

func TestPositionConcentrationLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrderNotional = dec("1000000")
	cfg.MaxTotalExposure = dec("1000000")
	m := newManager(t, cfg)

	// 200 shares at 150 is 30% of 100k equity against the 25% limit.
	result := m.CheckOrder(marketBuy("200"), dec("150"), dec("100000"))
	if result.Approved {
		t.Fatal("order approved, want concentration rejection")
	}
	if !strings.Contains(result.Reason, "concentration") {
		t.Errorf("reason = %q, want concentration mention", result.Reason)
	}
}

func TestConcentrationAccountsForExistingPosition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrderNotional = dec("1000000")
	cfg.MaxTotalExposure = dec("1000000")
	m := newManager(t, cfg)

	m.RecordFill(testSymbol(), types.SideBuy, dec("100"))

	// 100 held plus 100 more at 150 is 30% of equity.
	result := m.CheckOrder(marketBuy("100"), dec("150"), dec("100000"))
	if result.Approved {
		t.Fatal("order approved, want concentration rejection")
	}

	// Selling reduces the projected position, so it passes.
	sell := types.NewMarketOrder(testSymbol(), types.SideSell, dec("50"), "test")
	result = m.CheckOrder(sell, dec("150"), dec("100000"))
	if !result.Approved {
		t.Fatalf("sell rejected: %s", result.Reason)
	}
}

func TestTotalExposureLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrderNotional = dec("1000000")
	cfg.MaxTotalExposure = dec("50000")
	cfg.ConcentrationLimit = dec("1.0")
	m := newManager(t, cfg)

	// 400 shares at 150 is 60k against the 50k limit.
	result := m.CheckOrder(marketBuy("400"), dec("150"), dec("100000"))
	if result.Approved {
		t.Fatal("order approved, want exposure rejection")
	}
}

func TestDryRunApprovesRejectedOrders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrderNotional = dec("1000")
	cfg.DryRun = true
	m := newManager(t, cfg)

	// 100 shares at 150 is 15k notional against a 1k limit.
	result := m.CheckOrder(marketBuy("100"), dec("150"), dec("100000"))
	if !result.Approved {
		t.Fatalf("dry run rejected order: %s", result.Reason)
	}
}

func TestRecordFillTracking(t *testing.T) {
	m := newManager(t, DefaultConfig())
	sym := testSymbol()

	m.RecordFill(sym, types.SideBuy, dec("100"))
	if got := m.PositionQuantity(sym); !got.Equal(dec("100")) {
		t.Fatalf("quantity = %s, want 100", got)
	}

	m.RecordFill(sym, types.SideSell, dec("40"))
	if got := m.PositionQuantity(sym); !got.Equal(dec("60")) {
		t.Fatalf("quantity = %s, want 60", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero window", func(c *Config) { c.OrderWindow = 0 }, true},
		{"zero rate", func(c *Config) { c.MaxOrdersPerWindow = 0 }, true},
		{"negative notional", func(c *Config) { c.MaxOrderNotional = dec("-1") }, true},
		{"zero exposure", func(c *Config) { c.MaxTotalExposure = decimal.Zero }, true},
		{"zero concentration", func(c *Config) { c.ConcentrationLimit = decimal.Zero }, true},
		{"zero breaker", func(c *Config) { c.DailyLossCircuitBreaker = decimal.Zero }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
