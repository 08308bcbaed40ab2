package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PGStore is the PostgreSQL-backed Store implementation
type PGStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewPGStore creates the production store over an open pool
func NewPGStore(db *DB, logger zerolog.Logger) *PGStore {
	return &PGStore{db: db, logger: logger.With().Str("component", "store").Logger()}
}

var _ Store = (*PGStore)(nil)

const agentColumns = `id, user_id, name, chain, strategy, status, max_position_size,
	max_daily_trades, daily_trades_used, total_trades, winning_trades,
	total_pnl, win_rate, created_at, updated_at`

func scanAgent(row pgx.Row) (*AgentConfig, error) {
	var a AgentConfig
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Chain, &a.Strategy, &a.Status,
		&a.MaxPositionSize, &a.MaxDailyTrades, &a.DailyTradesUsed, &a.TotalTrades,
		&a.WinningTrades, &a.TotalPnl, &a.WinRate, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListActiveAgents returns every agent with status running
func (s *PGStore) ListActiveAgents(ctx context.Context) ([]AgentConfig, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE status = 'running' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	defer rows.Close()

	var agents []AgentConfig
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// GetAgent returns one agent, nil when it does not exist
func (s *PGStore) GetAgent(ctx context.Context, id string) (*AgentConfig, error) {
	a, err := scanAgent(s.db.Pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return a, nil
}

// UpdateAgent persists the mutable agent fields
func (s *PGStore) UpdateAgent(ctx context.Context, agent *AgentConfig) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE agents SET status = $2, max_position_size = $3, max_daily_trades = $4,
			daily_trades_used = $5, total_trades = $6, winning_trades = $7,
			total_pnl = $8, win_rate = $9, updated_at = NOW()
		WHERE id = $1`,
		agent.ID, agent.Status, agent.MaxPositionSize, agent.MaxDailyTrades,
		agent.DailyTradesUsed, agent.TotalTrades, agent.WinningTrades,
		agent.TotalPnl, agent.WinRate)
	if err != nil {
		return fmt.Errorf("update agent %s: %w", agent.ID, err)
	}
	return nil
}

// ResetDailyTrades zeroes the daily trade counters for every agent
func (s *PGStore) ResetDailyTrades(ctx context.Context) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE agents SET daily_trades_used = 0, updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("reset daily trades: %w", err)
	}
	return nil
}

const positionColumns = `id, agent_id, chain, token_address, token_symbol, size,
	avg_entry_price, current_price, highest_price, stop_loss_price,
	take_profit_price, realized_pnl, entry_signals, tier_counter, status,
	opened_at, closed_at, exit_price`

func scanPosition(row pgx.Row) (*AgentPosition, error) {
	var p AgentPosition
	err := row.Scan(&p.ID, &p.AgentID, &p.Chain, &p.TokenAddress, &p.TokenSymbol,
		&p.Size, &p.AvgEntryPrice, &p.CurrentPrice, &p.HighestPrice,
		&p.StopLossPrice, &p.TakeProfitPrice, &p.RealizedPnl, &p.EntrySignals,
		&p.TierCounter, &p.Status, &p.OpenedAt, &p.ClosedAt, &p.ExitPrice)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOpenPositions returns an agent's open positions oldest first
func (s *PGStore) ListOpenPositions(ctx context.Context, agentID string) ([]AgentPosition, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+positionColumns+` FROM agent_positions
		 WHERE agent_id = $1 AND status = 'open' ORDER BY opened_at`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	defer rows.Close()

	var positions []AgentPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

// GetPosition returns one position, nil when it does not exist
func (s *PGStore) GetPosition(ctx context.Context, id string) (*AgentPosition, error) {
	p, err := scanPosition(s.db.Pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM agent_positions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}
	return p, nil
}

// CreatePosition inserts a new open position, assigning an id when missing
func (s *PGStore) CreatePosition(ctx context.Context, pos *AgentPosition) error {
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = time.Now()
	}
	pos.Status = "open"

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO agent_positions (id, agent_id, chain, token_address, token_symbol,
			size, avg_entry_price, current_price, highest_price, stop_loss_price,
			take_profit_price, realized_pnl, entry_signals, tier_counter, status, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		pos.ID, pos.AgentID, pos.Chain, pos.TokenAddress, pos.TokenSymbol,
		pos.Size, pos.AvgEntryPrice, pos.CurrentPrice, pos.HighestPrice,
		pos.StopLossPrice, pos.TakeProfitPrice, pos.RealizedPnl,
		pos.EntrySignals, pos.TierCounter, pos.Status, pos.OpenedAt)
	if err != nil {
		return fmt.Errorf("create position: %w", err)
	}
	return nil
}

// UpdatePosition persists the mutable fields of an open position
func (s *PGStore) UpdatePosition(ctx context.Context, pos *AgentPosition) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE agent_positions SET size = $2, avg_entry_price = $3, current_price = $4,
			highest_price = $5, stop_loss_price = $6, take_profit_price = $7,
			realized_pnl = $8, tier_counter = $9
		WHERE id = $1`,
		pos.ID, pos.Size, pos.AvgEntryPrice, pos.CurrentPrice, pos.HighestPrice,
		pos.StopLossPrice, pos.TakeProfitPrice, pos.RealizedPnl, pos.TierCounter)
	if err != nil {
		return fmt.Errorf("update position %s: %w", pos.ID, err)
	}
	return nil
}

// ClosePosition marks a position closed with its exit price and final pnl
func (s *PGStore) ClosePosition(ctx context.Context, id string, exitPrice, realizedPnl float64) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE agent_positions SET status = 'closed', size = 0, exit_price = $2,
			realized_pnl = $3, closed_at = NOW()
		WHERE id = $1`,
		id, exitPrice, realizedPnl)
	if err != nil {
		return fmt.Errorf("close position %s: %w", id, err)
	}
	return nil
}

// CreateTrade appends one executed trade
func (s *PGStore) CreateTrade(ctx context.Context, trade *AgentTrade) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO agent_trades (id, agent_id, position_id, chain, token_address,
			token_symbol, type, amount, price, pnl, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		trade.ID, trade.AgentID, trade.PositionID, trade.Chain, trade.TokenAddress,
		trade.TokenSymbol, trade.Type, trade.Amount, trade.Price, trade.Pnl,
		trade.Reason, trade.CreatedAt)
	if err != nil {
		return fmt.Errorf("create trade: %w", err)
	}
	return nil
}

// CreateLog appends one decision-cycle log entry
func (s *PGStore) CreateLog(ctx context.Context, log *AgentLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO agent_logs (id, agent_id, action, decision, reasoning,
			token_symbol, confidence, signal_score, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		log.ID, log.AgentID, log.Action, log.Decision, log.Reasoning,
		log.TokenSymbol, log.Confidence, log.SignalScore, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	return nil
}

// ListTrades returns an agent's most recent trades, newest first
func (s *PGStore) ListTrades(ctx context.Context, agentID string, limit int) ([]AgentTrade, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, agent_id, position_id, chain, token_address, token_symbol,
			type, amount, price, pnl, reason, created_at
		FROM agent_trades WHERE agent_id = $1
		ORDER BY created_at DESC LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []AgentTrade
	for rows.Next() {
		var t AgentTrade
		if err := rows.Scan(&t.ID, &t.AgentID, &t.PositionID, &t.Chain,
			&t.TokenAddress, &t.TokenSymbol, &t.Type, &t.Amount, &t.Price,
			&t.Pnl, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// AllSignalPerformance loads every learned signal row
func (s *PGStore) AllSignalPerformance(ctx context.Context) ([]SignalPerformance, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT signal, strategy, wins, losses, count, avg_pnl_pct, updated_at
		FROM signal_performance`)
	if err != nil {
		return nil, fmt.Errorf("load signal performance: %w", err)
	}
	defer rows.Close()

	var perf []SignalPerformance
	for rows.Next() {
		var p SignalPerformance
		if err := rows.Scan(&p.Signal, &p.Strategy, &p.Wins, &p.Losses,
			&p.Count, &p.AvgPnlPct, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan signal performance: %w", err)
		}
		perf = append(perf, p)
	}
	return perf, rows.Err()
}

// UpsertSignalPerformance folds one trade outcome into the (signal,
// strategy) row, maintaining the rolling average pnl
func (s *PGStore) UpsertSignalPerformance(ctx context.Context, signal, strategy string, won bool, pnlPct float64) error {
	win, loss := 0, 1
	if won {
		win, loss = 1, 0
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO signal_performance (signal, strategy, wins, losses, count, avg_pnl_pct, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, NOW())
		ON CONFLICT (signal, strategy) DO UPDATE SET
			wins = signal_performance.wins + $3,
			losses = signal_performance.losses + $4,
			count = signal_performance.count + 1,
			avg_pnl_pct = (signal_performance.avg_pnl_pct * signal_performance.count + $5)
				/ (signal_performance.count + 1),
			updated_at = NOW()`,
		signal, strategy, win, loss, pnlPct)
	if err != nil {
		return fmt.Errorf("upsert signal performance %s/%s: %w", signal, strategy, err)
	}
	return nil
}

// TokenSafetyReport returns the stored safety snapshot, nil when unknown
func (s *PGStore) TokenSafetyReport(ctx context.Context, chain, tokenAddress string) (*SafetyRecord, error) {
	var r SafetyRecord
	err := s.db.Pool.QueryRow(ctx, `
		SELECT chain, token_address, safety_score, holder_count,
			top_holder_percent, dev_holding_percent, updated_at
		FROM token_safety WHERE chain = $1 AND token_address = $2`,
		chain, tokenAddress).
		Scan(&r.Chain, &r.TokenAddress, &r.SafetyScore, &r.HolderCount,
			&r.TopHolderPercent, &r.DevHoldingPercent, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("token safety %s/%s: %w", chain, tokenAddress, err)
	}
	return &r, nil
}

// HasActivePromoAccess reports whether the user holds an unexpired promo grant
func (s *PGStore) HasActivePromoAccess(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM promo_access
			WHERE user_id = $1 AND expires_at > NOW()
		)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("promo access %s: %w", userID, err)
	}
	return exists, nil
}

// ActiveSubscription returns the user's current active subscription, nil
// when there is none
func (s *PGStore) ActiveSubscription(ctx context.Context, userID string) (*Subscription, error) {
	return s.subscription(ctx, userID, `
		SELECT id, user_id, plan, status, expires_at, grace_until
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active' AND expires_at > NOW()
		ORDER BY expires_at DESC LIMIT 1`)
}

// SubscriptionIncludingGrace also accepts subscriptions still inside
// their grace window
func (s *PGStore) SubscriptionIncludingGrace(ctx context.Context, userID string) (*Subscription, error) {
	return s.subscription(ctx, userID, `
		SELECT id, user_id, plan, status, expires_at, grace_until
		FROM subscriptions
		WHERE user_id = $1 AND (expires_at > NOW() OR grace_until > NOW())
		ORDER BY expires_at DESC LIMIT 1`)
}

func (s *PGStore) subscription(ctx context.Context, userID, query string) (*Subscription, error) {
	var sub Subscription
	err := s.db.Pool.QueryRow(ctx, query, userID).
		Scan(&sub.ID, &sub.UserID, &sub.Plan, &sub.Status, &sub.ExpiresAt, &sub.GraceUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", userID, err)
	}
	return &sub, nil
}

// UserIDForWallet resolves a wallet address to its owning user, "" when unknown
func (s *PGStore) UserIDForWallet(ctx context.Context, walletAddress string) (string, error) {
	var userID string
	err := s.db.Pool.QueryRow(ctx,
		`SELECT user_id FROM wallets WHERE address = $1`, walletAddress).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("wallet lookup: %w", err)
	}
	return userID, nil
}
