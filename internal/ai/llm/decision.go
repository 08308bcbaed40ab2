package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/learning"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/signals"
)

// Decision is the parsed oracle verdict for one agent cycle
type Decision struct {
	Action       string  `json:"action"`
	TokenSymbol  string  `json:"tokenSymbol"`
	TokenAddress string  `json:"tokenAddress"`
	Chain        string  `json:"chain"`
	Amount       float64 `json:"amount"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	SignalScore  float64 `json:"signalScore"`
}

// HoldDecision is the safe fallback used whenever the oracle fails or
// answers with something unusable
func HoldDecision(reason string) *Decision {
	return &Decision{Action: "hold", Reasoning: reason}
}

// DecisionRequest carries everything the prompt needs for one agent cycle
type DecisionRequest struct {
	Agent        *database.AgentConfig
	Strategy     signals.Strategy
	Signals      []*signals.TokenSignal
	Breadth      signals.MarketBreadth
	Positions    []database.AgentPosition
	RecentTrades []database.AgentTrade
	LossStreak   int
	AdaptiveMode string // Defensive, Confident, Standard
}

// DecisionEngine builds the oracle prompt and parses the answer.
// Any failure on the oracle path degrades to a hold decision.
type DecisionEngine struct {
	oracle   Oracle
	learning *learning.Store
	logger   *logging.Logger
}

// NewDecisionEngine wires the oracle port and the learning store
func NewDecisionEngine(oracle Oracle, store *learning.Store, logger *logging.Logger) *DecisionEngine {
	return &DecisionEngine{
		oracle:   oracle,
		learning: store,
		logger:   logger.WithComponent("oracle"),
	}
}

// Decide consults the oracle for one agent. Never returns an error: the
// failure mode is a hold decision carrying the error as reasoning.
func (e *DecisionEngine) Decide(ctx context.Context, req *DecisionRequest) *Decision {
	prompt := e.buildPrompt(req)

	raw, err := e.oracle.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		e.logger.Warn("oracle call failed", "agent", req.Agent.ID, "error", err.Error())
		return HoldDecision(fmt.Sprintf("oracle error: %v", err))
	}

	return parseDecision(raw)
}

// parseDecision strips code fences and JSON-parses the completion.
// Unknown actions coerce to hold; garbage becomes a hold with the parse
// error attached.
func parseDecision(raw string) *Decision {
	cleaned := stripMarkdownCodeBlock(raw)

	var d Decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return HoldDecision(fmt.Sprintf("unparseable oracle response: %v", err))
	}

	switch d.Action {
	case "buy", "sell", "hold":
	default:
		d.Action = "hold"
	}
	return &d
}

// stripMarkdownCodeBlock removes a surrounding ``` fence, with or
// without a language marker
func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (e *DecisionEngine) buildPrompt(req *DecisionRequest) string {
	var b strings.Builder

	b.WriteString(RulesFor(string(req.Strategy)))
	b.WriteString("\n\n")

	e.writeMarketContext(&b, req)
	e.writePortfolio(&b, req)
	b.WriteString(formatSignalsForAI(req.Signals, 30))
	e.writeBuyCandidates(&b, req)
	e.writeRecentTrades(&b, req)

	b.WriteString("\nAnswer with the single JSON decision object now.\n")
	return b.String()
}

func (e *DecisionEngine) writeMarketContext(b *strings.Builder, req *DecisionRequest) {
	fmt.Fprintf(b, "MARKET CONTEXT\nRegime: %s (breadth %.1f, %d tokens sampled, %.0f%% positive 1h)\n",
		req.Breadth.Regime, req.Breadth.BreadthScore, req.Breadth.SampleSize, req.Breadth.PctPositive1h)
	fmt.Fprintf(b, "Adaptive mode: %s\n", req.AdaptiveMode)

	winning, losing := e.learning.Snapshot(req.Strategy, 5)
	if len(winning) > 0 {
		b.WriteString("Signals that have been winning for this strategy:\n")
		for _, s := range winning {
			fmt.Fprintf(b, "  %s: %.0f%% win rate over %d trades, avg pnl %+.1f%%\n",
				s.Signal, s.WinRate*100, s.Count, s.AvgPnl)
		}
	}
	if len(losing) > 0 {
		b.WriteString("Signals that have been losing for this strategy (avoid):\n")
		for _, s := range losing {
			fmt.Fprintf(b, "  %s: %.0f%% win rate over %d trades, avg pnl %+.1f%%\n",
				s.Signal, s.WinRate*100, s.Count, s.AvgPnl)
		}
	}
	b.WriteString("\n")
}

func (e *DecisionEngine) writePortfolio(b *strings.Builder, req *DecisionRequest) {
	fmt.Fprintf(b, "PORTFOLIO (%d open, max size %.2f, daily trades %d/%d)\n",
		len(req.Positions), req.Agent.MaxPositionSize,
		req.Agent.DailyTradesUsed, req.Agent.MaxDailyTrades)

	if len(req.Positions) == 0 {
		b.WriteString("  no open positions\n\n")
		return
	}

	for _, p := range req.Positions {
		line := fmt.Sprintf("  %s (%s): size %.4f, entry %.8g, now %.8g, pnl %+.2f%%, held %.1fh",
			p.TokenSymbol, p.Chain, p.Size, p.AvgEntryPrice, p.CurrentPrice,
			p.PnlPercent(), p.HoldHours())
		if t := findSignal(req.Signals, p.TokenAddress, p.Chain); t != nil {
			line += fmt.Sprintf(", whale %s, stMom %.0f", t.WhaleActivity, t.ShortTermMomentum)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

func (e *DecisionEngine) writeBuyCandidates(b *strings.Builder, req *DecisionRequest) {
	candidates := signals.TopBuySignals(req.Signals, req.Strategy)
	if len(candidates) == 0 {
		b.WriteString("\nPRE-FILTERED BUY CANDIDATES: none passed the hard filter this cycle\n")
		return
	}

	b.WriteString("\nPRE-FILTERED BUY CANDIDATES (already passed the hard filter):\n")
	for _, t := range candidates {
		fmt.Fprintf(b, "  %s (%s %s): score %.1f, conviction %.0f, rug %.0f\n",
			t.Symbol, t.Chain, t.TokenAddress, t.OverallSignalScore, t.Conviction, t.RugRiskScore)
	}
}

func (e *DecisionEngine) writeRecentTrades(b *strings.Builder, req *DecisionRequest) {
	if len(req.RecentTrades) > 0 {
		b.WriteString("\nRECENT TRADES (newest first):\n")
		trades := req.RecentTrades
		if len(trades) > 5 {
			trades = trades[:5]
		}
		for _, t := range trades {
			fmt.Fprintf(b, "  %s %s %.4f @ %.8g pnl %+.4f\n",
				t.Type, t.TokenSymbol, t.Amount, t.Price, t.Pnl)
		}
	}

	if req.LossStreak >= 3 {
		fmt.Fprintf(b, "\nWARNING: %d consecutive losses. Be defensive; hold is a valid answer.\n", req.LossStreak)
	}
}

// formatSignalsForAI renders the top n signals one line per token: every
// scalar score, the key technical fields and the tag list
func formatSignalsForAI(list []*signals.TokenSignal, n int) string {
	var b strings.Builder
	b.WriteString("SIGNAL TABLE (ranked by overall score):\n")

	if len(list) > n {
		list = list[:n]
	}
	for i, t := range list {
		fmt.Fprintf(&b,
			"%2d. %s (%s %s) price=%.8g chg1h=%+.1f%% chg24h=%+.1f%% vol=%.0f liq=%.0f mcap=%.0f | "+
				"score=%.1f conv=%.0f mom=%.0f vol=%.0f buyP=%.0f liqS=%.0f safe=%.0f sm=%.0f rug=%.0f "+
				"stMom=%.0f volat=%.0f social=%.0f news=%.0f liqH=%.0f",
			i+1, t.Symbol, t.Chain, t.TokenAddress, t.Price, t.PriceChange1h, t.PriceChange24,
			t.Volume24h, t.Liquidity, t.MarketCap,
			t.OverallSignalScore, t.Conviction, t.MomentumScore, t.VolumeScore, t.BuyPressureScore,
			t.LiquidityScore, t.SafetyScore, t.SmartMoneyScore, t.RugRiskScore,
			t.ShortTermMomentum, t.Volatility, t.SocialSentimentScore, t.NewsScore, t.LiquidityHealth)

		if tech := t.Technical; tech != nil && tech.BarCount >= 10 {
			fmt.Fprintf(&b, " | rsi=%.1f trend=%.0f ema=%s cross=%s div=%s",
				tech.RSI14, tech.TrendStrength, tech.EMATrendAlignment, tech.EMACrossover, tech.RSIDivergence)
		}

		if len(t.Signals) > 0 {
			tags := make([]string, len(t.Signals))
			for j, s := range t.Signals {
				tags[j] = string(s)
			}
			fmt.Fprintf(&b, " | tags=%s", strings.Join(tags, ","))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func findSignal(list []*signals.TokenSignal, address, chain string) *signals.TokenSignal {
	for _, t := range list {
		if t.TokenAddress == address && string(t.Chain) == chain {
			return t
		}
	}
	return nil
}
