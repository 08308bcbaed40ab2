package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/learning"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/signals"
)

type fakeOracle struct {
	response string
	err      error
	gotUser  string
}

func (f *fakeOracle) Generate(ctx context.Context, system, user string) (string, error) {
	f.gotUser = user
	return f.response, f.err
}

type nilPersistence struct{}

func (nilPersistence) AllSignalPerformance(ctx context.Context) ([]database.SignalPerformance, error) {
	return nil, nil
}

func (nilPersistence) UpsertSignalPerformance(ctx context.Context, signal, strategy string, won bool, pnlPct float64) error {
	return nil
}

func newTestEngine(oracle Oracle) *DecisionEngine {
	logger := logging.New(&logging.Config{Level: "ERROR"})
	return NewDecisionEngine(oracle, learning.NewStore(nilPersistence{}, logger), logger)
}

func testRequest() *DecisionRequest {
	return &DecisionRequest{
		Agent:        &database.AgentConfig{ID: "agent-1", MaxPositionSize: 10, MaxDailyTrades: 20},
		Strategy:     signals.StrategyBalanced,
		Breadth:      signals.MarketBreadth{Regime: signals.RegimeNeutral, BreadthScore: 50},
		AdaptiveMode: "Standard",
	}
}

// TestParseDecisionPlainJSON checks a clean completion parses through
func TestParseDecisionPlainJSON(t *testing.T) {
	raw := `{"action":"buy","tokenSymbol":"TOK","tokenAddress":"abc","chain":"solana","amount":1.5,"confidence":80,"reasoning":"strong momentum"}`
	d := parseDecision(raw)
	if d.Action != "buy" || d.TokenSymbol != "TOK" || d.Amount != 1.5 {
		t.Errorf("Parsed decision mismatch: %+v", d)
	}
}

// TestParseDecisionStripsFences checks markdown-wrapped answers parse
func TestParseDecisionStripsFences(t *testing.T) {
	raw := "```json\n{\"action\":\"sell\",\"tokenSymbol\":\"TOK\"}\n```"
	d := parseDecision(raw)
	if d.Action != "sell" || d.TokenSymbol != "TOK" {
		t.Errorf("Fenced decision mismatch: %+v", d)
	}

	bare := "```\n{\"action\":\"hold\"}\n```"
	if d := parseDecision(bare); d.Action != "hold" {
		t.Errorf("Bare-fenced decision mismatch: %+v", d)
	}
}

// TestParseDecisionUnknownAction coerces to hold
func TestParseDecisionUnknownAction(t *testing.T) {
	d := parseDecision(`{"action":"yolo","tokenSymbol":"TOK"}`)
	if d.Action != "hold" {
		t.Errorf("Unknown action should coerce to hold, got %s", d.Action)
	}
}

// TestParseDecisionGarbage degrades to hold with the parse error
func TestParseDecisionGarbage(t *testing.T) {
	d := parseDecision("the market feels bullish today")
	if d.Action != "hold" {
		t.Errorf("Garbage should become hold, got %s", d.Action)
	}
	if !strings.Contains(d.Reasoning, "unparseable") {
		t.Errorf("Reasoning should carry the parse failure, got %q", d.Reasoning)
	}
}

// TestStripMarkdownCodeBlock checks the fence variants
func TestStripMarkdownCodeBlock(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := stripMarkdownCodeBlock(c.in); got != c.want {
			t.Errorf("strip(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// TestDecideOracleFailureHolds checks the engine never errors outward
func TestDecideOracleFailureHolds(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("timeout")}
	e := newTestEngine(oracle)

	d := e.Decide(context.Background(), testRequest())
	if d.Action != "hold" {
		t.Errorf("Oracle failure should hold, got %s", d.Action)
	}
	if !strings.Contains(d.Reasoning, "oracle error") {
		t.Errorf("Reasoning should carry the oracle error, got %q", d.Reasoning)
	}
}

// TestDecidePromptContainsContext checks the prompt carries the strategy
// rules, regime and loss-streak warning
func TestDecidePromptContainsContext(t *testing.T) {
	oracle := &fakeOracle{response: `{"action":"hold"}`}
	e := newTestEngine(oracle)

	req := testRequest()
	req.LossStreak = 4
	req.Signals = []*signals.TokenSignal{{
		Symbol: "TOK", Chain: "solana", TokenAddress: "abc",
		OverallSignalScore: 75, Conviction: 60,
	}}
	e.Decide(context.Background(), req)

	for _, want := range []string{"MARKET CONTEXT", "SIGNAL TABLE", "TOK", "consecutive losses", "Adaptive mode: Standard"} {
		if !strings.Contains(oracle.gotUser, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

// TestFormatSignalsCapsList checks the table truncates at n
func TestFormatSignalsCapsList(t *testing.T) {
	var list []*signals.TokenSignal
	for i := 0; i < 40; i++ {
		list = append(list, &signals.TokenSignal{Symbol: "TOK", Chain: "solana"})
	}
	out := formatSignalsForAI(list, 30)
	if got := strings.Count(out, "TOK"); got != 30 {
		t.Errorf("Table should cap at 30 rows, got %d", got)
	}
}

// TestHoldDecision checks the fallback shape
func TestHoldDecision(t *testing.T) {
	d := HoldDecision("nothing to do")
	if d.Action != "hold" || d.Reasoning != "nothing to do" {
		t.Errorf("HoldDecision mismatch: %+v", d)
	}
}
