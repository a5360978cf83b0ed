package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatPriceConfig(price string) Config {
	cfg := DefaultConfig()
	cfg.BasePrice = decimal.RequireFromString(price)
	cfg.Slope = decimal.Zero
	return cfg
}

func TestExchangeBuyRoundsCostUp(t *testing.T) {
	l, _ := newTestLedger(t, flatPriceConfig("2.5"))
	seed(t, l, map[string]int64{"alice": 100})

	res, err := l.Exchange(guildID, "alice", BuyCur2, 3)
	require.NoError(t, err)
	// 3 * 2.5 = 7.5 -> 8
	assert.Equal(t, int64(-8), res.Cur1Delta)
	assert.Equal(t, int64(3), res.Cur2Delta)
	assert.Equal(t, int64(92), res.Balance.Cur1)
	assert.Equal(t, int64(3), res.Balance.Cur2)
	assert.True(t, res.Price.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, int64(92), l.GuildTotal(guildID))
	require.NoError(t, l.Verify(guildID))
}

func TestExchangeSellRoundsProceedsDown(t *testing.T) {
	l, _ := newTestLedger(t, flatPriceConfig("2.5"))
	seed(t, l, map[string]int64{"alice": 100})
	_, err := l.Exchange(guildID, "alice", BuyCur2, 4) // costs 10
	require.NoError(t, err)

	res, err := l.Exchange(guildID, "alice", SellCur2, 3)
	require.NoError(t, err)
	// 3 * 2.5 = 7.5 -> 7
	assert.Equal(t, int64(7), res.Cur1Delta)
	assert.Equal(t, int64(-3), res.Cur2Delta)
	assert.Equal(t, int64(97), res.Balance.Cur1)
	assert.Equal(t, int64(1), res.Balance.Cur2)
	assert.Equal(t, int64(97), l.GuildTotal(guildID))
}

func TestExchangeRejectsInsufficientSource(t *testing.T) {
	l, _ := newTestLedger(t, flatPriceConfig("10"))
	seed(t, l, map[string]int64{"alice": 25})

	_, err := l.Exchange(guildID, "alice", BuyCur2, 3)
	var ife *InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, Cur1, ife.Currency)
	assert.Equal(t, int64(30), ife.Required)

	_, err = l.Exchange(guildID, "alice", SellCur2, 1)
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, Cur2, ife.Currency)

	b, err := l.Balance(guildID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(25), b.Cur1)
	assert.Zero(t, b.Cur2)
}

func TestExchangeUsesPriceBeforeTrade(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BasePrice = decimal.NewFromInt(1)
	cfg.Slope = decimal.RequireFromString("0.01")
	l, _ := newTestLedger(t, cfg)
	seed(t, l, map[string]int64{"alice": 100})

	res, err := l.Exchange(guildID, "alice", BuyCur2, 10)
	require.NoError(t, err)
	// price 1 + 0.01*100 = 2, cost 20; total drops to 80, price to 1.8
	assert.True(t, res.Price.Equal(decimal.NewFromInt(2)), "price = %s", res.Price)
	assert.Equal(t, int64(-20), res.Cur1Delta)
	assert.True(t, res.Balance.Price.Equal(decimal.RequireFromString("1.8")), "price = %s", res.Balance.Price)
}

func TestExchangeInvalidInput(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())

	_, err := l.Exchange(guildID, "alice", BuyCur2, 0)
	require.ErrorIs(t, err, ErrInvalidEntry)
	_, err = l.Exchange(guildID, "alice", Direction(7), 1)
	require.ErrorIs(t, err, ErrInvalidEntry)
	_, err = l.Exchange("", "alice", SellCur2, 1)
	require.ErrorIs(t, err, ErrInvalidEntry)
}

func TestDailyCooldown(t *testing.T) {
	l, now := newTestLedger(t, DefaultConfig())

	c, err := l.Daily(guildID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), c.Reward)
	assert.Equal(t, int64(100), c.Balance.Cur1)
	assert.Equal(t, now.Add(24*time.Hour), c.NextAt)

	*now = now.Add(23 * time.Hour)
	_, err = l.Daily(guildID, "alice")
	require.ErrorIs(t, err, ErrCooldown)
	var ce *CooldownError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Daily, ce.Kind)
	assert.Equal(t, time.Hour, ce.Remaining)
	assert.Equal(t, int64(3_600_000), ce.RemainingMs())
	assert.Equal(t, int64(100), cur1(t, l, "alice"), "a rejected claim must grant nothing")

	*now = now.Add(time.Hour)
	c, err = l.Daily(guildID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(200), c.Balance.Cur1)

	*now = now.Add(time.Minute)
	_, err = l.Daily(guildID, "alice")
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 24*time.Hour-time.Minute, ce.Remaining, "window restarts from the last claim")
}

func TestWeeklyIndependentOfDaily(t *testing.T) {
	l, now := newTestLedger(t, DefaultConfig())

	_, err := l.Daily(guildID, "alice")
	require.NoError(t, err)
	c, err := l.Weekly(guildID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), c.Balance.Cur1)
	assert.Equal(t, int64(1100), l.GuildTotal(guildID))

	*now = now.Add(6 * 24 * time.Hour)
	_, err = l.Weekly(guildID, "alice")
	var ce *CooldownError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Weekly, ce.Kind)
	assert.Equal(t, 24*time.Hour, ce.Remaining)

	_, err = l.Daily(guildID, "alice")
	require.NoError(t, err)

	accounts := l.Accounts(guildID)
	require.Len(t, accounts, 1)
	assert.Equal(t, *now, accounts[0].LastDailyAt)
}
