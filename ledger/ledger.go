// Package ledger implements the in-memory guild economy: per-account balances
// in two currencies, batch transactions that apply atomically across several
// accounts, currency exchange at a supply-driven price, and cooldown-gated
// rewards.
//
// Accounts are created on first access with zero balances and are never
// removed. Every mutation of a guild happens under that guild's lock, so the
// validate and apply passes of a transaction can never interleave with
// another transaction in the same guild.
package ledger

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency names one of the two balances an account holds.
type Currency string

const (
	Cur1 Currency = "cur1"
	Cur2 Currency = "cur2"
)

// Config holds the economy parameters. It is copied by New.
type Config struct {
	// BasePrice and Slope define the cur2 price in cur1:
	// BasePrice + Slope * guild total of cur1.
	BasePrice decimal.Decimal
	Slope     decimal.Decimal

	DailyReward  int64
	WeeklyReward int64
	DailyWindow  time.Duration
	WeeklyWindow time.Duration
}

// DefaultConfig returns the economy parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		BasePrice:    decimal.NewFromInt(10),
		Slope:        decimal.New(1, -4),
		DailyReward:  100,
		WeeklyReward: 1000,
		DailyWindow:  24 * time.Hour,
		WeeklyWindow: 7 * 24 * time.Hour,
	}
}

// Account is a snapshot of one member's holdings.
type Account struct {
	GuildID      string
	UserID       string
	Cur1         int64
	Cur2         int64
	LastDailyAt  time.Time
	LastWeeklyAt time.Time
}

// Balance is what callers see for a single account.
type Balance struct {
	Cur1  int64
	Cur2  int64
	Price decimal.Decimal
}

// Entry is one signed cur1 delta of a transaction.
type Entry struct {
	UserID string
	Delta  int64
}

// Receipt describes a committed transaction.
type Receipt struct {
	ID         uuid.UUID
	GuildID    string
	Balances   map[string]Balance
	GuildTotal int64
	At         time.Time
}

// Stats is a snapshot of ledger counters.
type Stats struct {
	Guilds    int
	Accounts  int
	Committed uint64
	Rejected  uint64
}

type guild struct {
	mu       sync.Mutex
	accounts map[string]*Account
	total    int64 // sum of cur1 over accounts
}

// Ledger holds every guild's accounts. All methods are safe for concurrent
// use.
type Ledger struct {
	cfg Config

	mu     sync.RWMutex
	guilds map[string]*guild

	committed atomic.Uint64
	rejected  atomic.Uint64

	nowFunc func() time.Time // for testing; defaults to time.Now
	newID   func() uuid.UUID
}

// Validate rejects parameters that would let a committed operation leave a
// balance negative or hand out cur2 for nothing.
func (c Config) Validate() error {
	switch {
	case !c.BasePrice.IsPositive():
		return fmt.Errorf("%w: base price must be positive, got %s", ErrInvalidConfig, c.BasePrice)
	case c.Slope.IsNegative():
		return fmt.Errorf("%w: slope must not be negative, got %s", ErrInvalidConfig, c.Slope)
	case c.DailyReward < 0 || c.WeeklyReward < 0:
		return fmt.Errorf("%w: rewards must not be negative", ErrInvalidConfig)
	}
	return nil
}

// New creates an empty Ledger. Zero reward windows fall back to the defaults.
func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	def := DefaultConfig()
	if cfg.DailyWindow <= 0 {
		cfg.DailyWindow = def.DailyWindow
	}
	if cfg.WeeklyWindow <= 0 {
		cfg.WeeklyWindow = def.WeeklyWindow
	}
	return &Ledger{
		cfg:     cfg,
		guilds:  make(map[string]*guild),
		nowFunc: time.Now,
		newID:   uuid.New,
	}, nil
}

// Balance returns the account of userID in guildID, creating a zero account
// on first access.
func (l *Ledger) Balance(guildID, userID string) (Balance, error) {
	if guildID == "" {
		return Balance{}, invalid(-1, "empty guild id")
	}
	if userID == "" {
		return Balance{}, invalid(-1, "empty user id")
	}

	g := l.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return l.balanceOf(g, g.account(guildID, userID)), nil
}

// Transaction applies entries to guildID atomically. Deltas for the same user
// are summed first; if any account would end below zero the whole batch is
// rejected with an *InsufficientFundsError and nothing changes.
func (l *Ledger) Transaction(guildID string, entries []Entry) (Receipt, error) {
	net, err := netDeltas(guildID, entries)
	if err != nil {
		l.rejected.Add(1)
		return Receipt{}, err
	}

	g := l.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()

	users := slices.Sorted(maps.Keys(net))

	// Validate without touching any account.
	var sum int64
	for _, u := range users {
		d := net[u]
		var cur int64
		if a, ok := g.accounts[u]; ok {
			cur = a.Cur1
		}
		next, ok := addInt64(cur, d)
		if !ok {
			l.rejected.Add(1)
			return Receipt{}, invalid(-1, "balance overflow for user "+u)
		}
		if next < 0 {
			l.rejected.Add(1)
			return Receipt{}, &InsufficientFundsError{UserID: u, Currency: Cur1, Balance: cur, Required: -d}
		}
		if sum, ok = addInt64(sum, d); !ok {
			l.rejected.Add(1)
			return Receipt{}, invalid(-1, "transaction sum overflow")
		}
	}
	total, ok := addInt64(g.total, sum)
	if !ok {
		l.rejected.Add(1)
		return Receipt{}, invalid(-1, "guild total overflow")
	}

	// Apply. Nothing below can fail.
	for _, u := range users {
		g.account(guildID, u).Cur1 += net[u]
	}
	g.total = total
	l.committed.Add(1)

	return l.receipt(guildID, g, users), nil
}

// Transfer moves amount of cur1 from one user to another.
func (l *Ledger) Transfer(guildID, fromUserID, toUserID string, amount int64) (Receipt, error) {
	if amount <= 0 {
		l.rejected.Add(1)
		return Receipt{}, invalid(-1, "transfer amount must be positive")
	}
	if fromUserID == toUserID {
		l.rejected.Add(1)
		return Receipt{}, invalid(-1, "cannot transfer to self")
	}
	return l.Transaction(guildID, []Entry{
		{UserID: fromUserID, Delta: -amount},
		{UserID: toUserID, Delta: amount},
	})
}

// GuildTotal returns the running sum of cur1 in guildID.
func (l *Ledger) GuildTotal(guildID string) int64 {
	g, ok := l.lookup(guildID)
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

// Price returns the current cur2 price in guildID.
func (l *Ledger) Price(guildID string) decimal.Decimal {
	return l.price(l.GuildTotal(guildID))
}

// Accounts returns a snapshot of every account in guildID ordered by user.
func (l *Ledger) Accounts(guildID string) []Account {
	g, ok := l.lookup(guildID)
	if !ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Account, 0, len(g.accounts))
	for _, a := range g.accounts {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b Account) int { return cmp.Compare(a.UserID, b.UserID) })
	return out
}

// Verify recomputes the cur1 sum of guildID and returns a *DriftError if it
// differs from the running total.
func (l *Ledger) Verify(guildID string) error {
	g, ok := l.lookup(guildID)
	if !ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var sum int64
	for _, a := range g.accounts {
		sum += a.Cur1
	}
	if sum != g.total {
		return &DriftError{GuildID: guildID, Running: g.total, Actual: sum}
	}
	return nil
}

// Stats returns ledger counters.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	guilds := make([]*guild, 0, len(l.guilds))
	for _, g := range l.guilds {
		guilds = append(guilds, g)
	}
	l.mu.RUnlock()

	s := Stats{
		Guilds:    len(guilds),
		Committed: l.committed.Load(),
		Rejected:  l.rejected.Load(),
	}
	for _, g := range guilds {
		g.mu.Lock()
		s.Accounts += len(g.accounts)
		g.mu.Unlock()
	}
	return s
}

// guild returns the state of guildID, creating it on first use.
func (l *Ledger) guild(guildID string) *guild {
	if g, ok := l.lookup(guildID); ok {
		return g
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.guilds[guildID]; ok {
		return g
	}
	g := &guild{accounts: make(map[string]*Account)}
	l.guilds[guildID] = g
	return g
}

func (l *Ledger) lookup(guildID string) (*guild, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.guilds[guildID]
	return g, ok
}

// account returns userID's account, creating it. Must be called with g.mu held.
func (g *guild) account(guildID, userID string) *Account {
	a, ok := g.accounts[userID]
	if !ok {
		a = &Account{GuildID: guildID, UserID: userID}
		g.accounts[userID] = a
	}
	return a
}

// balanceOf must be called with g.mu held.
func (l *Ledger) balanceOf(g *guild, a *Account) Balance {
	return Balance{Cur1: a.Cur1, Cur2: a.Cur2, Price: l.price(g.total)}
}

func (l *Ledger) price(total int64) decimal.Decimal {
	return l.cfg.BasePrice.Add(l.cfg.Slope.Mul(decimal.NewFromInt(total)))
}

// receipt must be called with g.mu held.
func (l *Ledger) receipt(guildID string, g *guild, users []string) Receipt {
	r := Receipt{
		ID:         l.newID(),
		GuildID:    guildID,
		Balances:   make(map[string]Balance, len(users)),
		GuildTotal: g.total,
		At:         l.now(),
	}
	for _, u := range users {
		r.Balances[u] = l.balanceOf(g, g.accounts[u])
	}
	return r
}

func (l *Ledger) now() time.Time {
	if l.nowFunc != nil {
		return l.nowFunc()
	}
	return time.Now()
}

// netDeltas validates the shape of a batch and sums deltas per user.
func netDeltas(guildID string, entries []Entry) (map[string]int64, error) {
	if guildID == "" {
		return nil, invalid(-1, "empty guild id")
	}
	if len(entries) == 0 {
		return nil, invalid(-1, "no entries")
	}
	net := make(map[string]int64, len(entries))
	for i, e := range entries {
		if e.UserID == "" {
			return nil, invalid(i, "empty user id")
		}
		sum, ok := addInt64(net[e.UserID], e.Delta)
		if !ok {
			return nil, invalid(i, "delta overflow")
		}
		net[e.UserID] = sum
	}
	return net, nil
}

func addInt64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}
