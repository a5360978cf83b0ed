package rpc

import (
	"context"
	"time"

	"github.com/Keksclan/rawrguild/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// DefaultRetry retries Unavailable with exponential back-off, waiting at
// least as long as the server's RetryInfo asks.
var DefaultRetry = retry.Config{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    2 * time.Second,
	Jitter:      0.2,
	RetryCodes:  []codes.Code{codes.Unavailable},
}

// Client calls rawr.Economy and rawr.Health. Reads are retried under the
// configured policy; mutations are sent once because a lost response does not
// prove the ledger did not apply them.
type Client struct {
	cc    grpc.ClientConnInterface
	retry retry.Config
}

// NewClient wraps cc. A zero cfg selects DefaultRetry.
func NewClient(cc grpc.ClientConnInterface, cfg retry.Config) *Client {
	if cfg.MaxAttempts == 0 {
		cfg = DefaultRetry
	}
	return &Client{cc: cc, retry: cfg}
}

func invoke[Resp any](ctx context.Context, c *Client, cfg retry.Config, service, name string, req any) (*Resp, error) {
	fullMethod := "/" + service + "/" + name
	return retry.Do(ctx, cfg, func(ctx context.Context) (*Resp, error) {
		out := new(Resp)
		if err := c.cc.Invoke(ctx, fullMethod, req, out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (c *Client) once() retry.Config {
	cfg := c.retry
	cfg.MaxAttempts = 1
	return cfg
}

// Balance returns a member's holdings.
func (c *Client) Balance(ctx context.Context, guildID, userID string) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, c, c.retry, EconomyServiceName, "Balance", &BalanceRequest{GuildID: guildID, UserID: userID})
}

// Transaction applies entries atomically.
func (c *Client) Transaction(ctx context.Context, guildID string, entries ...Entry) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c, c.once(), EconomyServiceName, "Transaction", &TransactionRequest{GuildID: guildID, Entries: entries})
}

// Transfer moves amount cur1 from one member to another.
func (c *Client) Transfer(ctx context.Context, guildID, from, to string, amount int64) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c, c.once(), EconomyServiceName, "Transfer", &TransferRequest{GuildID: guildID, FromUserID: from, ToUserID: to, Amount: amount})
}

// Exchange converts amount cur2; direction is "buy" or "sell".
func (c *Client) Exchange(ctx context.Context, guildID, userID, direction string, amount int64) (*ExchangeResponse, error) {
	return invoke[ExchangeResponse](ctx, c, c.once(), EconomyServiceName, "Exchange", &ExchangeRequest{GuildID: guildID, UserID: userID, Direction: direction, Amount: amount})
}

// Daily claims the daily reward.
func (c *Client) Daily(ctx context.Context, guildID, userID string) (*ClaimResponse, error) {
	return invoke[ClaimResponse](ctx, c, c.once(), EconomyServiceName, "Daily", &ClaimRequest{GuildID: guildID, UserID: userID})
}

// Weekly claims the weekly reward.
func (c *Client) Weekly(ctx context.Context, guildID, userID string) (*ClaimResponse, error) {
	return invoke[ClaimResponse](ctx, c, c.once(), EconomyServiceName, "Weekly", &ClaimRequest{GuildID: guildID, UserID: userID})
}

// Health fetches the server health report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	return invoke[HealthResponse](ctx, c, c.retry, HealthServiceName, "Check", &HealthRequest{})
}
