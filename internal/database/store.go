package database

import "context"

// Store is the persistence port the engine runs against. The pgx
// implementation below is the production one; tests substitute fakes.
type Store interface {
	// Agents
	ListActiveAgents(ctx context.Context) ([]AgentConfig, error)
	GetAgent(ctx context.Context, id string) (*AgentConfig, error)
	UpdateAgent(ctx context.Context, agent *AgentConfig) error
	ResetDailyTrades(ctx context.Context) error

	// Positions
	ListOpenPositions(ctx context.Context, agentID string) ([]AgentPosition, error)
	GetPosition(ctx context.Context, id string) (*AgentPosition, error)
	CreatePosition(ctx context.Context, pos *AgentPosition) error
	UpdatePosition(ctx context.Context, pos *AgentPosition) error
	ClosePosition(ctx context.Context, id string, exitPrice, realizedPnl float64) error

	// Trades and logs, append-only
	CreateTrade(ctx context.Context, trade *AgentTrade) error
	CreateLog(ctx context.Context, log *AgentLog) error
	ListTrades(ctx context.Context, agentID string, limit int) ([]AgentTrade, error)

	// Learned signal performance
	AllSignalPerformance(ctx context.Context) ([]SignalPerformance, error)
	UpsertSignalPerformance(ctx context.Context, signal, strategy string, won bool, pnlPct float64) error

	// Token safety snapshots
	TokenSafetyReport(ctx context.Context, chain, tokenAddress string) (*SafetyRecord, error)

	// Access control
	HasActivePromoAccess(ctx context.Context, userID string) (bool, error)
	ActiveSubscription(ctx context.Context, userID string) (*Subscription, error)
	SubscriptionIncludingGrace(ctx context.Context, userID string) (*Subscription, error)
	UserIDForWallet(ctx context.Context, walletAddress string) (string, error)
}
