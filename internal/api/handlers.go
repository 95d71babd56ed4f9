package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trading-decision-bot/internal/backtest"
	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/events"
	"trading-decision-bot/internal/regime"
	"trading-decision-bot/internal/reversal"
	"trading-decision-bot/internal/risk"
	"trading-decision-bot/internal/sentiment"
)

// analysisResponse is the wire shape of one evaluation: the decision fields
// at the top level plus the per-module breakdown.
type analysisResponse struct {
	*decision.Decision
	Symbol  string        `json:"symbol"`
	Modules moduleResults `json:"modules"`
}

type moduleResults struct {
	Regime     *regime.Result    `json:"regime"`
	Sentiment  *sentiment.Result `json:"sentiment"`
	RiskLevels *risk.Levels      `json:"risk_levels"`
	Reversal   *reversal.Result  `json:"reversal"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"timestamp":  time.Now().UTC(),
		"ws_clients": s.hub.ClientCount(),
	})
}

// handleAnalysis runs one full evaluation for the symbol and returns the
// gated decision with the module breakdown.
func (s *Server) handleAnalysis(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	analysis, err := s.engine.EvaluateSymbol(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("analysis failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysisResponse{
		Decision: analysis.Decision,
		Symbol:   symbol,
		Modules: moduleResults{
			Regime:     analysis.Regime,
			Sentiment:  analysis.Sentiment,
			RiskLevels: analysis.Risk,
			Reversal:   analysis.Reversal,
		},
	})
}

// backtestRequest extends the run configuration with the history depth to
// fetch. Zero-valued fields fall back to defaults.
type backtestRequest struct {
	backtest.Config
	Bars int `json:"bars"`
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	req.Symbol = strings.ToUpper(req.Symbol)
	config := req.Config
	defaults := backtest.DefaultConfig(config.Symbol)
	if config.InitialCapital == 0 {
		config.InitialCapital = defaults.InitialCapital
	}
	if config.PositionFraction == 0 {
		config.PositionFraction = defaults.PositionFraction
	}
	if config.WarmupBars == 0 {
		config.WarmupBars = defaults.WarmupBars
	}
	if config.PeriodsPerYear == 0 {
		config.PeriodsPerYear = defaults.PeriodsPerYear
	}
	if req.Bars == 0 {
		req.Bars = 500
	}

	bars, err := s.data.GetBars(c.Request.Context(), config.Symbol, req.Bars)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := s.backtester.Run(bars, config)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// Stream the finished run to websocket listeners
	s.bus.Publish(events.EventBacktestDone, map[string]interface{}{
		"symbol":               config.Symbol,
		"total_trades":         result.Metrics.TotalTrades,
		"completed_rounds":     result.Metrics.CompletedRounds,
		"total_return_percent": result.Metrics.TotalReturnPercent,
		"final_equity":         result.Metrics.FinalEquity,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"metrics":      result.Metrics,
		"equity_curve": result.EquityCurve,
		"trades":       result.Trades,
		"config":       result.Config,
	})
}
