package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/signals"
)

// ComboPrefix marks keys that record a whole entry-signal set rather
// than a single tag
const ComboPrefix = "COMBO:"

// Persistence is the slice of the database the learning store needs
type Persistence interface {
	AllSignalPerformance(ctx context.Context) ([]database.SignalPerformance, error)
	UpsertSignalPerformance(ctx context.Context, signal, strategy string, won bool, pnlPct float64) error
}

type stats struct {
	wins   int
	losses int
	count  int
	avgPnl float64
}

func (s *stats) winRate() float64 {
	if s.count == 0 {
		return 0
	}
	return float64(s.wins) / float64(s.count)
}

// Store keeps learned per-signal and per-combo win/loss records in
// memory, persisting every update through the database. Reads are served
// from the in-memory maps.
type Store struct {
	mu      sync.RWMutex
	stats   map[string]*stats // (strategy|signal) -> record
	persist Persistence
	logger  *logging.Logger
}

// NewStore creates an empty learning store; call Load before serving reads
func NewStore(persist Persistence, logger *logging.Logger) *Store {
	return &Store{
		stats:   make(map[string]*stats),
		persist: persist,
		logger:  logger.WithComponent("learning"),
	}
}

func key(strategy signals.Strategy, signal string) string {
	return string(strategy) + "|" + signal
}

// ComboKey canonicalizes an entry-signal set: sorted tags joined with
// "+" under the COMBO: prefix, so key(A,B) == key(B,A)
func ComboKey(tags []signals.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = string(t)
	}
	sort.Strings(names)
	return ComboPrefix + strings.Join(names, "+")
}

// Load replaces the in-memory state with the persisted records
func (s *Store) Load(ctx context.Context) error {
	rows, err := s.persist.AllSignalPerformance(ctx)
	if err != nil {
		return fmt.Errorf("load signal performance: %w", err)
	}

	loaded := make(map[string]*stats, len(rows))
	for _, r := range rows {
		loaded[key(signals.Strategy(r.Strategy), r.Signal)] = &stats{
			wins:   r.Wins,
			losses: r.Losses,
			count:  r.Count,
			avgPnl: r.AvgPnlPct,
		}
	}

	s.mu.Lock()
	s.stats = loaded
	s.mu.Unlock()

	s.logger.Info("learning store loaded", "records", len(rows))
	return nil
}

// RecordTradeExit folds one closed trade into every entry signal's
// record and the combo record for the whole set
func (s *Store) RecordTradeExit(ctx context.Context, entrySignals []signals.Tag, strategy signals.Strategy, entryPrice, exitPrice float64) error {
	if entryPrice <= 0 || len(entrySignals) == 0 {
		return nil
	}

	pnlPct := (exitPrice - entryPrice) / entryPrice * 100
	won := pnlPct > 0

	names := make([]string, 0, len(entrySignals)+1)
	for _, tag := range entrySignals {
		names = append(names, string(tag))
	}
	names = append(names, ComboKey(entrySignals))

	var firstErr error
	for _, name := range names {
		s.apply(strategy, name, won, pnlPct)
		if err := s.persist.UpsertSignalPerformance(ctx, name, string(strategy), won, pnlPct); err != nil {
			s.logger.Error("signal performance persist failed", "signal", name, "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Store) apply(strategy signals.Strategy, signal string, won bool, pnlPct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(strategy, signal)
	st, ok := s.stats[k]
	if !ok {
		st = &stats{}
		s.stats[k] = st
	}

	if won {
		st.wins++
	} else {
		st.losses++
	}
	st.count++
	st.avgPnl = (st.avgPnl*float64(st.count-1) + pnlPct) / float64(st.count)
}

func (s *Store) lookup(strategy signals.Strategy, signal string) *stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats[key(strategy, signal)]
}

// ConfidenceMultiplier scales conviction contributions by how the signal
// has actually performed. Fewer than 3 observations read neutral.
func (s *Store) ConfidenceMultiplier(tag signals.Tag, strategy signals.Strategy) float64 {
	st := s.lookup(strategy, string(tag))
	if st == nil || st.count < 3 {
		return 1.0
	}

	switch wr := st.winRate(); {
	case wr >= 0.75:
		return 1.4
	case wr >= 0.60:
		return 1.2
	case wr >= 0.50:
		return 1.05
	case wr >= 0.40:
		return 0.85
	case wr >= 0.30:
		return 0.6
	default:
		return 0.3
	}
}

// IsBlacklisted reports whether a signal has lost often and badly enough
// to block entries carrying it
func (s *Store) IsBlacklisted(tag signals.Tag, strategy signals.Strategy) bool {
	st := s.lookup(strategy, string(tag))
	if st == nil {
		return false
	}
	return st.count >= 5 && st.winRate() < 0.25 && st.avgPnl < -3
}

// ComboConfidence evaluates the whole entry-signal set as one unit.
// Returns the multiplier and whether the combo is blacklisted outright.
func (s *Store) ComboConfidence(tags []signals.Tag, strategy signals.Strategy) (float64, bool) {
	st := s.lookup(strategy, ComboKey(tags))
	if st == nil || st.count < 3 {
		return 1.0, false
	}

	wr := st.winRate()
	if wr < 0.20 && st.count >= 5 {
		return 0, true
	}

	switch {
	case wr >= 0.70:
		return 1.5, false
	case wr >= 0.55:
		return 1.2, false
	case wr < 0.35:
		return 0.5, false
	default:
		return 1.0, false
	}
}

// ConvictionBoost converts the learned multipliers of the entry signals
// into an additive conviction adjustment: the mean of (mult-1)*15 over
// signals with a non-neutral multiplier, rounded
func (s *Store) ConvictionBoost(tags []signals.Tag, strategy signals.Strategy) float64 {
	var sum float64
	var n int
	for _, tag := range tags {
		mult := s.ConfidenceMultiplier(tag, strategy)
		if mult == 1.0 {
			continue
		}
		sum += (mult - 1) * 15
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum / float64(n))
}

// SignalSummary is one learned record in read-back form, used for the
// oracle's learning context
type SignalSummary struct {
	Signal  string
	Count   int
	WinRate float64
	AvgPnl  float64
	Combo   bool
}

// Snapshot returns the learned records for a strategy split into winners
// and losers (win rate >= 0.55 / < 0.45 with at least 3 observations),
// strongest first, capped at n per side
func (s *Store) Snapshot(strategy signals.Strategy, n int) (winning, losing []SignalSummary) {
	prefix := string(strategy) + "|"

	s.mu.RLock()
	for k, st := range s.stats {
		if !strings.HasPrefix(k, prefix) || st.count < 3 {
			continue
		}
		sum := SignalSummary{
			Signal:  strings.TrimPrefix(k, prefix),
			Count:   st.count,
			WinRate: st.winRate(),
			AvgPnl:  st.avgPnl,
		}
		sum.Combo = strings.HasPrefix(sum.Signal, ComboPrefix)
		switch {
		case sum.WinRate >= 0.55:
			winning = append(winning, sum)
		case sum.WinRate < 0.45:
			losing = append(losing, sum)
		}
	}
	s.mu.RUnlock()

	sort.Slice(winning, func(i, j int) bool { return winning[i].WinRate > winning[j].WinRate })
	sort.Slice(losing, func(i, j int) bool { return losing[i].WinRate < losing[j].WinRate })

	if n > 0 && len(winning) > n {
		winning = winning[:n]
	}
	if n > 0 && len(losing) > n {
		losing = losing[:n]
	}
	return winning, losing
}
