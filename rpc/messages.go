package rpc

import (
	"time"

	"github.com/Keksclan/rawrguild/ledger"
)

// BalanceRequest addresses one account.
type BalanceRequest struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
}

// BalanceResponse carries holdings and the current guild price. Price is a
// decimal string.
type BalanceResponse struct {
	Cur1  int64  `json:"cur1"`
	Cur2  int64  `json:"cur2"`
	Price string `json:"price"`
}

// Entry is one signed cur1 delta.
type Entry struct {
	UserID string `json:"user_id"`
	Delta  int64  `json:"delta"`
}

// TransactionRequest applies all entries or none.
type TransactionRequest struct {
	GuildID string  `json:"guild_id"`
	Entries []Entry `json:"entries"`
}

// TransferRequest moves cur1 between two members.
type TransferRequest struct {
	GuildID    string `json:"guild_id"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     int64  `json:"amount"`
}

// ReceiptResponse describes a committed transaction.
type ReceiptResponse struct {
	ID         string                     `json:"id"`
	GuildTotal int64                      `json:"guild_total"`
	Balances   map[string]BalanceResponse `json:"balances"`
	AtUnixMs   int64                      `json:"at_unix_ms"`
}

// ExchangeRequest converts between currencies. Direction is "buy" or "sell".
type ExchangeRequest struct {
	GuildID   string `json:"guild_id"`
	UserID    string `json:"user_id"`
	Direction string `json:"direction"`
	Amount    int64  `json:"amount"`
}

// ExchangeResponse describes a committed exchange.
type ExchangeResponse struct {
	Balance   BalanceResponse `json:"balance"`
	Price     string          `json:"price"`
	Cur1Delta int64           `json:"cur1_delta"`
	Cur2Delta int64           `json:"cur2_delta"`
}

// ClaimRequest claims a periodic reward.
type ClaimRequest struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
}

// ClaimResponse describes a granted reward.
type ClaimResponse struct {
	Kind       string          `json:"kind"`
	Reward     int64           `json:"reward"`
	Balance    BalanceResponse `json:"balance"`
	NextUnixMs int64           `json:"next_unix_ms"`
}

// HealthRequest is empty.
type HealthRequest struct{}

// BreakerStatus is one breaker in a health report.
// LastFailureUnixMs is zero when the breaker never failed.
type BreakerStatus struct {
	Name              string `json:"name"`
	State             string `json:"state"`
	Failures          int    `json:"failures"`
	Successes         uint64 `json:"successes"`
	LastFailureUnixMs int64  `json:"last_failure_unix_ms,omitempty"`
}

// CacheStatus summarises the response cache.
type CacheStatus struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Deletes   uint64  `json:"deletes"`
	Evictions uint64  `json:"evictions"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	HitRate   float64 `json:"hit_rate"`
}

// HealthResponse reports "healthy" or "degraded".
type HealthResponse struct {
	Status   string          `json:"status"`
	Breakers []BreakerStatus `json:"breakers"`
	Cache    CacheStatus     `json:"cache"`
	InFlight int             `json:"in_flight"`
}

func balanceResponse(b ledger.Balance) BalanceResponse {
	return BalanceResponse{Cur1: b.Cur1, Cur2: b.Cur2, Price: b.Price.String()}
}

func receiptResponse(r ledger.Receipt) *ReceiptResponse {
	out := &ReceiptResponse{
		ID:         r.ID.String(),
		GuildTotal: r.GuildTotal,
		Balances:   make(map[string]BalanceResponse, len(r.Balances)),
		AtUnixMs:   r.At.UnixMilli(),
	}
	for user, b := range r.Balances {
		out.Balances[user] = balanceResponse(b)
	}
	return out
}

func claimResponse(c ledger.Claim) *ClaimResponse {
	return &ClaimResponse{
		Kind:       string(c.Kind),
		Reward:     c.Reward,
		Balance:    balanceResponse(c.Balance),
		NextUnixMs: c.NextAt.UnixMilli(),
	}
}

// NextAt converts NextUnixMs back to a time.
func (c *ClaimResponse) NextAt() time.Time {
	return time.UnixMilli(c.NextUnixMs)
}
