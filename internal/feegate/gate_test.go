package feegate

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/market"
)

func newTestGate(cfg Config) (*Gate, *market.FixedClock) {
	clock := &market.FixedClock{Current: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	return NewGate(cfg, clock, zerolog.Nop()), clock
}

func buyAt(price float64) *decision.Decision {
	return &decision.Decision{Action: decision.Buy, Confidence: 0.8, Price: price}
}

func sellAt(price float64) *decision.Decision {
	return &decision.Decision{Action: decision.Sell, Confidence: 0.8, Price: price}
}

// TestBreakevenPrice tests the documented $50,000 scenario
func TestBreakevenPrice(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.BreakevenPrice(50000); math.Abs(got-50100) > 1e-9 {
		t.Errorf("BreakevenPrice(50000) = %f, want 50100", got)
	}
	if got := cfg.MinProfitableExit(50000); math.Abs(got-50400) > 1e-9 {
		t.Errorf("MinProfitableExit(50000) = %f, want 50400", got)
	}
}

// TestHoldAndHaltPassThrough tests that non-trade actions bypass the gate
func TestHoldAndHaltPassThrough(t *testing.T) {
	gate, _ := newTestGate(DefaultConfig())

	hold := &decision.Decision{Action: decision.Hold, Price: 100}
	gated, res := gate.Evaluate("BTCUSDT", hold, 0)
	if gated != hold || res != nil {
		t.Error("HOLD should pass through unmodified with no reservation")
	}

	halt := &decision.Decision{Action: decision.Halt, Price: 100}
	gated, res = gate.Evaluate("BTCUSDT", halt, 0)
	if gated != halt || res != nil {
		t.Error("HALT should pass through unmodified with no reservation")
	}
}

// TestSellWithoutPosition tests the IDLE-state sell downgrade
func TestSellWithoutPosition(t *testing.T) {
	gate, _ := newTestGate(DefaultConfig())

	gated, res := gate.Evaluate("BTCUSDT", sellAt(50000), 0)
	if gated.Action != decision.Hold || res != nil {
		t.Fatalf("SELL while IDLE should downgrade to HOLD, got %s", gated.Action)
	}
	if gated.Reason != "No matching position" {
		t.Errorf("Reason = %q, want %q", gated.Reason, "No matching position")
	}
}

// TestBuyWhileHolding tests that a second entry is blocked
func TestBuyWhileHolding(t *testing.T) {
	gate, _ := newTestGate(DefaultConfig())

	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
	if res == nil {
		t.Fatal("First BUY should be permitted")
	}
	res.Commit()

	gated, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
	if gated.Action != decision.Hold || res != nil {
		t.Fatalf("BUY while HOLDING should downgrade to HOLD, got %s", gated.Action)
	}
	if gated.Reason != "No matching position" {
		t.Errorf("Reason = %q, want %q", gated.Reason, "No matching position")
	}
}

// TestMinimumHoldTime tests the hold-time floor and its countdown reason
func TestMinimumHoldTime(t *testing.T) {
	gate, clock := newTestGate(DefaultConfig())

	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
	res.Commit()

	clock.Advance(10 * time.Minute)
	gated, res := gate.Evaluate("BTCUSDT", sellAt(60000), 0)
	if gated.Action != decision.Hold || res != nil {
		t.Fatalf("SELL before the hold floor should downgrade, got %s", gated.Action)
	}
	if gated.Reason != "Must hold for 20 more minutes" {
		t.Errorf("Reason = %q, want %q", gated.Reason, "Must hold for 20 more minutes")
	}
}

// TestProfitFloor tests the fee-multiple exit rule around the documented
// $50,000 / 0.1% / 3x scenario
func TestProfitFloor(t *testing.T) {
	gate, clock := newTestGate(DefaultConfig())

	// Entry at $50,000 for 0.02 units: $1 entry fee, $1 exit fee, $6 floor
	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
	if res == nil {
		t.Fatal("BUY should be permitted")
	}
	res.Commit()
	clock.Advance(31 * time.Minute)

	// $300 gross = $4 net, below 3x fees
	gated, res := gate.Evaluate("BTCUSDT", sellAt(50300), 0)
	if gated.Action != decision.Hold || res != nil {
		t.Fatalf("Unprofitable SELL should downgrade, got %s", gated.Action)
	}
	if gated.Reason != "Net profit $4.00 below 3x fees ($6.00)" {
		t.Errorf("Reason = %q", gated.Reason)
	}

	// $500 gross = $8 net, above the floor
	gated, res = gate.Evaluate("BTCUSDT", sellAt(50500), 0)
	if gated.Action != decision.Sell || res == nil {
		t.Fatalf("Profitable SELL should be permitted, got %s (%s)", gated.Action, gated.Reason)
	}
	trade := res.Commit()
	if trade.PnL == nil || math.Abs(*trade.PnL-8) > 1e-9 {
		t.Errorf("Realized PnL = %v, want 8", trade.PnL)
	}
}

// TestBreakevenRoundTrip tests that a sell at breakeven nets exactly zero
func TestBreakevenRoundTrip(t *testing.T) {
	gate, clock := newTestGate(DefaultConfig())

	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 1)
	res.Commit()
	clock.Advance(31 * time.Minute)

	// Breakeven at $50,100: $100 gross against $100 round-trip fees
	gated, _ := gate.Evaluate("BTCUSDT", sellAt(50100), 0)
	if gated.Action != decision.Hold {
		t.Fatalf("Breakeven SELL should be blocked by the profit floor, got %s", gated.Action)
	}
	if gated.Reason != "Net profit $0.00 below 3x fees ($300.00)" {
		t.Errorf("Reason = %q, want exact zero net at breakeven", gated.Reason)
	}
}

// TestLargerProfitScenario tests the $500 gross / $100 fees permit case
func TestLargerProfitScenario(t *testing.T) {
	gate, clock := newTestGate(DefaultConfig())

	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 1)
	res.Commit()
	clock.Advance(31 * time.Minute)

	// $500 gross - $100 fees = $400 net >= $300
	gated, res := gate.Evaluate("BTCUSDT", sellAt(50500), 0)
	if gated.Action != decision.Sell || res == nil {
		t.Fatalf("SELL netting 4x fees should be permitted, got %s (%s)", gated.Action, gated.Reason)
	}
	trade := res.Commit()
	if math.Abs(*trade.PnL-400) > 1e-9 {
		t.Errorf("Realized PnL = %f, want 400", *trade.PnL)
	}
}

// TestHourlyTradeCap tests the rolling 60-minute window
func TestHourlyTradeCap(t *testing.T) {
	gate, clock := newTestGate(DefaultConfig())

	// Round trip: two trades inside the hour
	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
	res.Commit()
	clock.Advance(31 * time.Minute)
	_, res = gate.Evaluate("BTCUSDT", sellAt(50500), 0)
	res.Commit()

	clock.Advance(5 * time.Minute)
	gated, res := gate.Evaluate("BTCUSDT", buyAt(50400), 0.02)
	if gated.Action != decision.Hold || res != nil {
		t.Fatalf("Third trade in the hour should downgrade, got %s", gated.Action)
	}
	if gated.Reason != "Trade limit: 2/2 trades in last hour" {
		t.Errorf("Reason = %q", gated.Reason)
	}

	// Once the window slides past the first trade, entries resume
	clock.Advance(40 * time.Minute)
	gated, res = gate.Evaluate("BTCUSDT", buyAt(50400), 0.02)
	if gated.Action != decision.Buy || res == nil {
		t.Fatalf("BUY after the window slid should be permitted, got %s (%s)", gated.Action, gated.Reason)
	}
	res.Commit()
}

// TestDailyTradeCap tests the rolling 24-hour window
func TestDailyTradeCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTradesPerDay = 4
	cfg.MinHoldMinutes = 0
	gate, clock := newTestGate(cfg)

	for i := 0; i < 2; i++ {
		_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 1)
		if res == nil {
			t.Fatalf("Round %d BUY should be permitted", i)
		}
		res.Commit()
		clock.Advance(time.Minute)
		_, res = gate.Evaluate("BTCUSDT", sellAt(50500), 0)
		if res == nil {
			t.Fatalf("Round %d SELL should be permitted", i)
		}
		res.Commit()
		// Step past the hourly window between rounds
		clock.Advance(61 * time.Minute)
	}

	gated, res := gate.Evaluate("BTCUSDT", buyAt(50000), 1)
	if gated.Action != decision.Hold || res != nil {
		t.Fatalf("Fifth trade in the day should downgrade, got %s", gated.Action)
	}
	if gated.Reason != "Trade limit: 4/4 trades in last day" {
		t.Errorf("Reason = %q", gated.Reason)
	}
}

// TestAbortRestoresState tests the two-phase rollback
func TestAbortRestoresState(t *testing.T) {
	gate, _ := newTestGate(DefaultConfig())

	for i := 0; i < 3; i++ {
		gated, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
		if gated.Action != decision.Buy || res == nil {
			t.Fatalf("Attempt %d: aborted entries should not consume rate-limit slots (%s)", i, gated.Reason)
		}
		res.Abort()

		if _, _, ok := gate.Position("BTCUSDT"); ok {
			t.Fatalf("Attempt %d: abort should clear the speculative position", i)
		}
	}
}

// TestCommitIsFinal tests that Abort after Commit is a no-op
func TestCommitIsFinal(t *testing.T) {
	gate, _ := newTestGate(DefaultConfig())

	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
	res.Commit()
	res.Abort()

	if _, _, ok := gate.Position("BTCUSDT"); !ok {
		t.Error("Abort after Commit should not roll back the position")
	}
}

// TestSeedFromHistory tests state reconstruction after a restart
func TestSeedFromHistory(t *testing.T) {
	gate, clock := newTestGate(DefaultConfig())
	now := clock.Now()

	// Open round: BUY without a matching SELL
	gate.Seed("BTCUSDT", []market.TradeRecord{
		{Side: "BUY", Price: 50000, Amount: 0.02, Timestamp: now.Add(-2 * time.Hour)},
	})
	entry, quantity, ok := gate.Position("BTCUSDT")
	if !ok || entry != 50000 || quantity != 0.02 {
		t.Errorf("Seeded position = %f/%f/%v, want 50000/0.02/true", entry, quantity, ok)
	}

	// Closed round: flat afterwards
	gate.Seed("ETHUSDT", []market.TradeRecord{
		{Side: "BUY", Price: 3000, Amount: 1, Timestamp: now.Add(-3 * time.Hour)},
		{Side: "SELL", Price: 3100, Amount: 1, Timestamp: now.Add(-2 * time.Hour)},
	})
	if _, _, ok := gate.Position("ETHUSDT"); ok {
		t.Error("Seeding a closed round should leave the symbol IDLE")
	}
}

// TestSnapshotRestore tests gate state persistence round trip
func TestSnapshotRestore(t *testing.T) {
	gate, _ := newTestGate(DefaultConfig())

	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
	res.Commit()

	snap := gate.Snapshot("BTCUSDT")
	if snap == nil || !snap.Holding() {
		t.Fatal("Snapshot should capture the open position")
	}

	restored, _ := newTestGate(DefaultConfig())
	restored.Restore("BTCUSDT", snap)
	entry, quantity, ok := restored.Position("BTCUSDT")
	if !ok || entry != 50000 || quantity != 0.02 {
		t.Errorf("Restored position = %f/%f/%v, want 50000/0.02/true", entry, quantity, ok)
	}
}

// TestSymbolsIsolated tests that per-symbol state never leaks
func TestSymbolsIsolated(t *testing.T) {
	gate, _ := newTestGate(DefaultConfig())

	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 0.02)
	res.Commit()

	// The other symbol is still IDLE and free to enter
	gated, res := gate.Evaluate("ETHUSDT", buyAt(3000), 0.5)
	if gated.Action != decision.Buy || res == nil {
		t.Fatalf("Independent symbol should be permitted, got %s", gated.Action)
	}
	res.Abort()
}

// TestConfigValidation tests the startup range checks
func TestConfigValidation(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}

	bad := DefaultConfig()
	bad.EntryFeeRole = "vip"
	if bad.Validate() == nil {
		t.Error("Unknown fee role should be rejected")
	}

	bad = DefaultConfig()
	bad.MaxTradesPerDay = 1 // below the hourly cap
	if bad.Validate() == nil {
		t.Error("Daily cap below the hourly cap should be rejected")
	}

	bad = DefaultConfig()
	bad.MinProfitMultiplier = 0.5
	if bad.Validate() == nil {
		t.Error("Profit multiplier below 1 should be rejected")
	}
}

// TestAbortKeepsInterleavedCommit tests that aborting a stale entry never
// erases a trade committed while its reservation was outstanding
func TestAbortKeepsInterleavedCommit(t *testing.T) {
	gate, clock := newTestGate(DefaultConfig())

	// Entry reserved but its execution outcome still unknown
	_, buyRes := gate.Evaluate("BTCUSDT", buyAt(50000), 1)
	if buyRes == nil {
		t.Fatal("BUY should be permitted")
	}

	// A later evaluation exits the optimistic position and fills
	clock.Advance(31 * time.Minute)
	gated, sellRes := gate.Evaluate("BTCUSDT", sellAt(50500), 0)
	if gated.Action != decision.Sell || sellRes == nil {
		t.Fatalf("SELL should be permitted, got %s (%s)", gated.Action, gated.Reason)
	}
	sellRes.Commit()

	// The entry's rejection arrives last
	buyRes.Abort()

	snap := gate.Snapshot("BTCUSDT")
	if n := len(snap.TradeTimes); n != 1 {
		t.Fatalf("Window holds %d timestamps after abort, want 1 for the committed SELL", n)
	}
	if !snap.TradeTimes[0].Equal(clock.Now()) {
		t.Error("Surviving timestamp should be the committed SELL's, not the aborted BUY's")
	}
	if _, _, ok := gate.Position("BTCUSDT"); ok {
		t.Error("Aborting the stale entry must not resurrect the sold position")
	}
}

// TestAbortedSellKeepsNewerPosition tests that a stale sell rollback never
// overwrites a position opened after it
func TestAbortedSellKeepsNewerPosition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTradesPerHour = 5
	cfg.MinHoldMinutes = 0
	gate, clock := newTestGate(cfg)

	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 1)
	res.Commit()

	clock.Advance(time.Minute)
	_, sellRes := gate.Evaluate("BTCUSDT", sellAt(50500), 0)
	if sellRes == nil {
		t.Fatal("SELL should be permitted")
	}

	// A fresh entry fills while the sell is still in flight
	clock.Advance(time.Minute)
	gated, buyRes := gate.Evaluate("BTCUSDT", buyAt(49000), 2)
	if gated.Action != decision.Buy || buyRes == nil {
		t.Fatalf("Re-entry should be permitted, got %s (%s)", gated.Action, gated.Reason)
	}
	buyRes.Commit()

	sellRes.Abort()

	entry, quantity, ok := gate.Position("BTCUSDT")
	if !ok || entry != 49000 || quantity != 2 {
		t.Errorf("Position = %f/%f/%v, want the newer 49000/2 entry intact", entry, quantity, ok)
	}
	if n := len(gate.Snapshot("BTCUSDT").TradeTimes); n != 2 {
		t.Errorf("Window holds %d timestamps, want 2 committed trades", n)
	}
}

// TestAbortedBuyDoesNotHitHourlyCap tests that rejection frees the slot
func TestAbortedBuyDoesNotHitHourlyCap(t *testing.T) {
	gate, clock := newTestGate(DefaultConfig())

	// Fill both hourly slots with a completed round trip
	_, res := gate.Evaluate("BTCUSDT", buyAt(50000), 1)
	res.Commit()
	clock.Advance(31 * time.Minute)
	_, res = gate.Evaluate("BTCUSDT", sellAt(50500), 0)
	res.Commit()

	// A hypothetical execution failure on another symbol must not be
	// affected by BTCUSDT's window, and its own abort must leave it clean
	_, res = gate.Evaluate("ETHUSDT", buyAt(3000), 1)
	if res == nil {
		t.Fatal("ETHUSDT entry should be permitted")
	}
	res.Abort()

	if n := len(gate.Snapshot("ETHUSDT").TradeTimes); n != 0 {
		t.Errorf("Aborted trade left %d timestamps in the window, want 0", n)
	}
}
