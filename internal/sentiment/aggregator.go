package sentiment

import (
	"encoding/json"
	"fmt"
	"math"
)

// Interpretation labels for the combined score
const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"
)

// Config holds sentiment aggregation settings
type Config struct {
	Weights          map[string]float64 `json:"weights"`           // Per-source weights, default equal
	MandatorySources []string           `json:"mandatory_sources"` // Missing any of these => should_trade=false
	BullishThreshold float64            `json:"bullish_threshold"` // Combined score above => bullish
	BearishThreshold float64            `json:"bearish_threshold"` // Combined score below => bearish
	DeadZone         float64            `json:"dead_zone"`         // |score| inside => inconclusive
}

// DefaultConfig returns the default aggregator configuration
func DefaultConfig() Config {
	return Config{
		BullishThreshold: 0.3,
		BearishThreshold: -0.3,
		DeadZone:         0.1,
	}
}

// Validate checks the configuration at startup
func (c Config) Validate() error {
	if c.BullishThreshold <= 0 || c.BullishThreshold > 1 {
		return fmt.Errorf("sentiment bullish_threshold %.2f out of range (0,1]", c.BullishThreshold)
	}
	if c.BearishThreshold >= 0 || c.BearishThreshold < -1 {
		return fmt.Errorf("sentiment bearish_threshold %.2f out of range [-1,0)", c.BearishThreshold)
	}
	if c.DeadZone < 0 || c.DeadZone >= 1 {
		return fmt.Errorf("sentiment dead_zone %.2f out of range [0,1)", c.DeadZone)
	}
	for name, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("sentiment weight for %q is negative", name)
		}
	}
	return nil
}

// Result is the sentiment module output. Sources carries the raw per-source
// scores; on the wire they are flattened into the object as sibling keys
// ("twitter", "news", ...) next to the combined fields.
type Result struct {
	Score          float64            `json:"score"`
	Interpretation string             `json:"interpretation"`
	ShouldTrade    bool               `json:"should_trade"`
	Confidence     float64            `json:"confidence"`
	Sources        map[string]float64 `json:"-"`
}

// MarshalJSON inlines the raw source scores as top-level keys. The fixed
// fields are written last so a source named after one of them cannot shadow
// it.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Sources)+4)
	for name, score := range r.Sources {
		out[name] = score
	}
	out["score"] = r.Score
	out["interpretation"] = r.Interpretation
	out["should_trade"] = r.ShouldTrade
	out["confidence"] = r.Confidence
	return json.Marshal(out)
}

// Aggregator merges multiple raw sentiment sources into one normalized score
type Aggregator struct {
	config Config
}

// NewAggregator creates a sentiment aggregator
func NewAggregator(config Config) *Aggregator {
	return &Aggregator{config: config}
}

// Neutral returns the degraded result used when the signal feed is
// unavailable. Sentiment is advisory, so the pipeline keeps going with
// should_trade=false rather than failing the decision.
func (a *Aggregator) Neutral() *Result {
	return &Result{
		Score:          0,
		Interpretation: Neutral,
		ShouldTrade:    false,
		Confidence:     0,
		Sources:        map[string]float64{},
	}
}

// Aggregate computes the weighted mean of the named raw scores. Scores are
// clamped to [-1,1] before weighting.
func (a *Aggregator) Aggregate(scores map[string]float64) *Result {
	result := &Result{
		Interpretation: Neutral,
		Sources:        make(map[string]float64, len(scores)),
	}

	if len(scores) == 0 {
		return result
	}

	var weightedSum, totalWeight float64
	for name, raw := range scores {
		score := clamp(raw, -1, 1)
		result.Sources[name] = score

		weight := 1.0
		if w, ok := a.config.Weights[name]; ok {
			weight = w
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return result
	}
	result.Score = weightedSum / totalWeight

	switch {
	case result.Score >= a.config.BullishThreshold:
		result.Interpretation = Bullish
	case result.Score <= a.config.BearishThreshold:
		result.Interpretation = Bearish
	}

	// Missing mandatory sources degrade to no-trade, never to an error
	missingMandatory := false
	for _, name := range a.config.MandatorySources {
		if _, ok := scores[name]; !ok {
			missingMandatory = true
			break
		}
	}

	result.ShouldTrade = !missingMandatory && math.Abs(result.Score) >= a.config.DeadZone
	result.Confidence = clamp(math.Abs(result.Score), 0, 1)

	return result
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
