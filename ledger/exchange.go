package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Direction selects which way an exchange converts.
type Direction int

const (
	// BuyCur2 spends cur1 to obtain cur2.
	BuyCur2 Direction = iota
	// SellCur2 spends cur2 to obtain cur1.
	SellCur2
)

func (d Direction) String() string {
	switch d {
	case BuyCur2:
		return "buy"
	case SellCur2:
		return "sell"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ExchangeResult describes a committed exchange.
type ExchangeResult struct {
	Balance Balance
	// Price is the price the exchange executed at, before it moved the
	// guild total.
	Price     decimal.Decimal
	Cur1Delta int64
	Cur2Delta int64
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// Exchange converts amount units of cur2 at the current guild price. Buying
// rounds the cur1 cost up and selling rounds the cur1 proceeds down, so the
// guild never creates currency through rounding.
func (l *Ledger) Exchange(guildID, userID string, dir Direction, amount int64) (ExchangeResult, error) {
	if guildID == "" || userID == "" {
		l.rejected.Add(1)
		return ExchangeResult{}, invalid(-1, "empty guild or user id")
	}
	if amount <= 0 {
		l.rejected.Add(1)
		return ExchangeResult{}, invalid(-1, "exchange amount must be positive")
	}
	if dir != BuyCur2 && dir != SellCur2 {
		l.rejected.Add(1)
		return ExchangeResult{}, invalid(-1, "unknown exchange direction "+dir.String())
	}

	g := l.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()

	price := l.price(g.total)
	value := price.Mul(decimal.NewFromInt(amount))

	var cur1, cur2 int64
	var cur1Now, cur2Now int64
	if a, ok := g.accounts[userID]; ok {
		cur1Now, cur2Now = a.Cur1, a.Cur2
	}

	switch dir {
	case BuyCur2:
		cost := value.Ceil()
		if cost.GreaterThan(maxInt64) {
			l.rejected.Add(1)
			return ExchangeResult{}, invalid(-1, "exchange value overflow")
		}
		if cost.IsNegative() {
			cost = decimal.Zero
		}
		c := cost.IntPart()
		if cur1Now < c {
			l.rejected.Add(1)
			return ExchangeResult{}, &InsufficientFundsError{UserID: userID, Currency: Cur1, Balance: cur1Now, Required: c}
		}
		if _, ok := addInt64(cur2Now, amount); !ok {
			l.rejected.Add(1)
			return ExchangeResult{}, invalid(-1, "balance overflow")
		}
		cur1, cur2 = -c, amount
	case SellCur2:
		proceeds := value.Floor()
		if proceeds.GreaterThan(maxInt64) {
			l.rejected.Add(1)
			return ExchangeResult{}, invalid(-1, "exchange value overflow")
		}
		if proceeds.IsNegative() {
			proceeds = decimal.Zero
		}
		p := proceeds.IntPart()
		if cur2Now < amount {
			l.rejected.Add(1)
			return ExchangeResult{}, &InsufficientFundsError{UserID: userID, Currency: Cur2, Balance: cur2Now, Required: amount}
		}
		if _, ok := addInt64(cur1Now, p); !ok {
			l.rejected.Add(1)
			return ExchangeResult{}, invalid(-1, "balance overflow")
		}
		if _, ok := addInt64(g.total, p); !ok {
			l.rejected.Add(1)
			return ExchangeResult{}, invalid(-1, "guild total overflow")
		}
		cur1, cur2 = p, -amount
	}

	a := g.account(guildID, userID)
	a.Cur1 += cur1
	a.Cur2 += cur2
	g.total += cur1
	l.committed.Add(1)

	return ExchangeResult{
		Balance:   l.balanceOf(g, a),
		Price:     price,
		Cur1Delta: cur1,
		Cur2Delta: cur2,
	}, nil
}
