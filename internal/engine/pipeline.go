package engine

import (
	"errors"
	"sync"

	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/market"
	"trading-decision-bot/internal/regime"
	"trading-decision-bot/internal/reversal"
	"trading-decision-bot/internal/risk"
	"trading-decision-bot/internal/sentiment"
)

// Analysis bundles the final decision with every module result so the API
// layer can expose the full breakdown.
type Analysis struct {
	Decision  *decision.Decision
	Regime    *regime.Result
	Sentiment *sentiment.Result
	Reversal  *reversal.Result
	Risk      *risk.Levels
}

// Pipeline runs the four analysis modules and the decision aggregator over
// one snapshot. Live mode and the backtester share this exact code path;
// only the data source and clock differ, which is what guarantees
// behavioral parity between the two.
type Pipeline struct {
	regime     *regime.Classifier
	sentiment  *sentiment.Aggregator
	reversal   *reversal.Detector
	risk       *risk.Calculator
	aggregator *decision.Aggregator
}

// NewPipeline wires the analysis modules together
func NewPipeline(rc *regime.Classifier, sa *sentiment.Aggregator, rd *reversal.Detector, rk *risk.Calculator, da *decision.Aggregator) *Pipeline {
	return &Pipeline{
		regime:     rc,
		sentiment:  sa,
		reversal:   rd,
		risk:       rk,
		aggregator: da,
	}
}

// Analyze fans the snapshot out to the four modules, joins their results and
// aggregates them into one decision. A nil scores map means the sentiment
// feed was unavailable and degrades to the neutral no-trade result.
// Insufficient history surfaces as a HALT decision with confidence 0, never
// as an error.
func (p *Pipeline) Analyze(snapshot market.Snapshot, scores map[string]float64) *Analysis {
	var (
		wg        sync.WaitGroup
		regimeRes *regime.Result
		regimeErr error
		sentRes   *sentiment.Result
		revRes    *reversal.Result
		riskRes   *risk.Levels
	)

	// Fan-out: the four modules are pure functions of the snapshot and
	// share no mutable state.
	wg.Add(4)
	go func() {
		defer wg.Done()
		regimeRes, regimeErr = p.regime.Classify(snapshot)
	}()
	go func() {
		defer wg.Done()
		if scores == nil {
			sentRes = p.sentiment.Neutral()
		} else {
			sentRes = p.sentiment.Aggregate(scores)
		}
	}()
	go func() {
		defer wg.Done()
		revRes = p.reversal.Detect(snapshot)
	}()
	go func() {
		defer wg.Done()
		// Direction is unknown until aggregation; the aggregator mirrors
		// the levels when the final action is SELL.
		riskRes = p.risk.Calculate(snapshot, risk.Neutral)
	}()
	wg.Wait()

	analysis := &Analysis{
		Regime:    regimeRes,
		Sentiment: sentRes,
		Reversal:  revRes,
		Risk:      riskRes,
	}

	if regimeErr != nil {
		if errors.Is(regimeErr, regime.ErrInsufficientHistory) {
			analysis.Decision = decision.HaltDecision(snapshot.Price,
				"Insufficient market history for regime classification")
			return analysis
		}
		analysis.Decision = decision.HaltDecision(snapshot.Price, regimeErr.Error())
		return analysis
	}

	analysis.Decision = p.aggregator.Aggregate(decision.Inputs{
		Regime:    regimeRes,
		Sentiment: sentRes,
		Reversal:  revRes,
		Risk:      riskRes,
		Price:     snapshot.Price,
	})

	return analysis
}
