package database

import "time"

// AgentConfig is a persisted trading agent
type AgentConfig struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Chain           string    `json:"chain"` // "" or "all" means every chain
	Strategy        string    `json:"strategy"`
	Status          string    `json:"status"` // running, stopped, paused
	MaxPositionSize float64   `json:"max_position_size"`
	MaxDailyTrades  int       `json:"max_daily_trades"`
	DailyTradesUsed int       `json:"daily_trades_used"`
	TotalTrades     int       `json:"total_trades"`
	WinningTrades   int       `json:"winning_trades"`
	TotalPnl        float64   `json:"total_pnl"`
	WinRate         float64   `json:"win_rate"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AgentPosition is an open or closed position held by an agent
type AgentPosition struct {
	ID              string     `json:"id"`
	AgentID         string     `json:"agent_id"`
	Chain           string     `json:"chain"`
	TokenAddress    string     `json:"token_address"`
	TokenSymbol     string     `json:"token_symbol"`
	Size            float64    `json:"size"`
	AvgEntryPrice   float64    `json:"avg_entry_price"`
	CurrentPrice    float64    `json:"current_price"`
	HighestPrice    float64    `json:"highest_price"`
	StopLossPrice   float64    `json:"stop_loss_price"`
	TakeProfitPrice float64    `json:"take_profit_price"`
	RealizedPnl     float64    `json:"realized_pnl"`
	EntrySignals    []string   `json:"entry_signals"`
	TierCounter     int        `json:"tier_counter"`
	Status          string     `json:"status"` // open, closed
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	ExitPrice       float64    `json:"exit_price,omitempty"`
}

// PnlPercent returns the unrealized move from entry, in percent
func (p *AgentPosition) PnlPercent() float64 {
	if p.AvgEntryPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.AvgEntryPrice) / p.AvgEntryPrice * 100
}

// HoldHours returns how long the position has been open
func (p *AgentPosition) HoldHours() float64 {
	return time.Since(p.OpenedAt).Hours()
}

// AgentTrade is one executed buy or sell. Append-only.
type AgentTrade struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	PositionID   string    `json:"position_id"`
	Chain        string    `json:"chain"`
	TokenAddress string    `json:"token_address"`
	TokenSymbol  string    `json:"token_symbol"`
	Type         string    `json:"type"` // buy, sell
	Amount       float64   `json:"amount"`
	Price        float64   `json:"price"`
	Pnl          float64   `json:"pnl"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AgentLog records one decision-cycle outcome for an agent. Append-only.
type AgentLog struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Action      string    `json:"action"`   // buy, sell, hold, blocked, skipped, stopped, error
	Decision    string    `json:"decision"` // buy, sell, hold or a block reason
	Reasoning   string    `json:"reasoning"`
	TokenSymbol string    `json:"token_symbol,omitempty"`
	Confidence  float64   `json:"confidence"`
	SignalScore float64   `json:"signal_score"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignalPerformance is the learned win/loss record for one signal tag
// (or a COMBO: key) under one strategy
type SignalPerformance struct {
	Signal    string    `json:"signal"`
	Strategy  string    `json:"strategy"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Count     int       `json:"count"`
	AvgPnlPct float64   `json:"avg_pnl_pct"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WinRate returns wins/count, 0 for an empty record
func (s *SignalPerformance) WinRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Count)
}

// Subscription is a user's access record
type Subscription struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Plan       string    `json:"plan"`
	Status     string    `json:"status"` // active, expired, cancelled
	ExpiresAt  time.Time `json:"expires_at"`
	GraceUntil time.Time `json:"grace_until"`
}

// SafetyRecord is the stored contract-safety snapshot for a token
type SafetyRecord struct {
	Chain             string    `json:"chain"`
	TokenAddress      string    `json:"token_address"`
	SafetyScore       float64   `json:"safety_score"`
	HolderCount       int       `json:"holder_count"`
	TopHolderPercent  float64   `json:"top_holder_percent"`
	DevHoldingPercent float64   `json:"dev_holding_percent"`
	UpdatedAt         time.Time `json:"updated_at"`
}
