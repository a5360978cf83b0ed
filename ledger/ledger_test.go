package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guildID = "guild-1"

func newTestLedger(t *testing.T, cfg Config) (*Ledger, *time.Time) {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }
	return l, &now
}

func seed(t *testing.T, l *Ledger, balances map[string]int64) {
	t.Helper()
	entries := make([]Entry, 0, len(balances))
	for u, v := range balances {
		entries = append(entries, Entry{UserID: u, Delta: v})
	}
	_, err := l.Transaction(guildID, entries)
	require.NoError(t, err)
}

func cur1(t *testing.T, l *Ledger, user string) int64 {
	t.Helper()
	b, err := l.Balance(guildID, user)
	require.NoError(t, err)
	return b.Cur1
}

func TestBalanceCreatesZeroAccount(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())

	b, err := l.Balance(guildID, "alice")
	require.NoError(t, err)
	assert.Zero(t, b.Cur1)
	assert.Zero(t, b.Cur2)
	assert.True(t, b.Price.Equal(decimal.NewFromInt(10)), "price = %s", b.Price)

	accounts := l.Accounts(guildID)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].UserID)
}

func TestBalanceRejectsEmptyIDs(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())

	_, err := l.Balance("", "alice")
	require.ErrorIs(t, err, ErrInvalidEntry)
	_, err = l.Balance(guildID, "")
	require.ErrorIs(t, err, ErrInvalidEntry)
}

func TestPriceFollowsGuildTotal(t *testing.T) {
	l, _ := newTestLedger(t, Config{
		BasePrice: decimal.NewFromInt(5),
		Slope:     decimal.RequireFromString("0.01"),
	})
	seed(t, l, map[string]int64{"alice": 300, "bob": 200})

	b, err := l.Balance(guildID, "alice")
	require.NoError(t, err)
	// 5 + 0.01 * 500
	assert.True(t, b.Price.Equal(decimal.NewFromInt(10)), "price = %s", b.Price)
	assert.Equal(t, int64(500), l.GuildTotal(guildID))
}

func TestNewRejectsUnsafeConfig(t *testing.T) {
	negativeDaily := DefaultConfig()
	negativeDaily.DailyReward = -500
	negativeWeekly := DefaultConfig()
	negativeWeekly.WeeklyReward = -1
	freeCur2 := DefaultConfig()
	freeCur2.BasePrice = decimal.Zero
	freeCur2.Slope = decimal.Zero
	negativeSlope := DefaultConfig()
	negativeSlope.Slope = decimal.NewFromInt(-1)

	for name, cfg := range map[string]Config{
		"negative daily":  negativeDaily,
		"negative weekly": negativeWeekly,
		"zero price":      freeCur2,
		"negative slope":  negativeSlope,
		"zero value":      {},
	} {
		t.Run(name, func(t *testing.T) {
			l, err := New(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, l)
		})
	}
}

func TestTransactionNetsSameUser(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())
	seed(t, l, map[string]int64{"alice": 10})

	r, err := l.Transaction(guildID, []Entry{
		{UserID: "alice", Delta: 5},
		{UserID: "alice", Delta: -3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), r.Balances["alice"].Cur1)
	assert.Equal(t, int64(12), r.GuildTotal)
	assert.NotEqual(t, [16]byte{}, [16]byte(r.ID))
}

func TestTransactionRejectsNetOverdraft(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())
	seed(t, l, map[string]int64{"A": 100})

	_, err := l.Transaction(guildID, []Entry{
		{UserID: "A", Delta: -50},
		{UserID: "A", Delta: -60},
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	var ife *InsufficientFundsError
	require.True(t, errors.As(err, &ife))
	assert.Equal(t, "A", ife.UserID)
	assert.Equal(t, Cur1, ife.Currency)
	assert.Equal(t, int64(100), ife.Balance)
	assert.Equal(t, int64(110), ife.Required)

	assert.Equal(t, int64(100), cur1(t, l, "A"))
	assert.Equal(t, int64(100), l.GuildTotal(guildID))
}

func TestTransactionMultiAccountAtomicity(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())
	seed(t, l, map[string]int64{"A": 100})

	_, err := l.Transaction(guildID, []Entry{{UserID: "A", Delta: -30}, {UserID: "B", Delta: 30}})
	require.NoError(t, err)
	assert.Equal(t, int64(70), cur1(t, l, "A"))
	assert.Equal(t, int64(30), cur1(t, l, "B"))

	_, err = l.Transaction(guildID, []Entry{{UserID: "A", Delta: -200}, {UserID: "B", Delta: 30}})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(70), cur1(t, l, "A"))
	assert.Equal(t, int64(30), cur1(t, l, "B"))
	assert.Equal(t, int64(100), l.GuildTotal(guildID))
	require.NoError(t, l.Verify(guildID))
}

func TestTransactionRejectionDoesNotCreateAccounts(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())

	_, err := l.Transaction(guildID, []Entry{{UserID: "ghost", Delta: -1}, {UserID: "other", Delta: 1}})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, l.Accounts(guildID))
}

func TestTransactionInvalidEntries(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())

	cases := map[string]struct {
		guild   string
		entries []Entry
	}{
		"empty guild":   {guild: "", entries: []Entry{{UserID: "a", Delta: 1}}},
		"no entries":    {guild: guildID},
		"empty user id": {guild: guildID, entries: []Entry{{UserID: "a", Delta: 1}, {UserID: "", Delta: 1}}},
		"overflow": {guild: guildID, entries: []Entry{
			{UserID: "a", Delta: 1<<63 - 1},
			{UserID: "a", Delta: 1},
		}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Transaction(tc.guild, tc.entries)
			require.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
	assert.Equal(t, uint64(len(cases)), l.Stats().Rejected)
}

func TestTransfer(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())
	seed(t, l, map[string]int64{"alice": 50})

	r, err := l.Transfer(guildID, "alice", "bob", 20)
	require.NoError(t, err)
	assert.Equal(t, int64(30), r.Balances["alice"].Cur1)
	assert.Equal(t, int64(20), r.Balances["bob"].Cur1)
	assert.Equal(t, int64(50), r.GuildTotal)

	_, err = l.Transfer(guildID, "alice", "bob", 31)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = l.Transfer(guildID, "alice", "bob", 0)
	require.ErrorIs(t, err, ErrInvalidEntry)
	_, err = l.Transfer(guildID, "alice", "alice", 5)
	require.ErrorIs(t, err, ErrInvalidEntry)
}

func TestConcurrentTransfersKeepInvariants(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())
	users := []string{"u0", "u1", "u2", "u3", "u4"}
	start := map[string]int64{}
	for _, u := range users {
		start[u] = 100
	}
	seed(t, l, start)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				from := users[(w+i)%len(users)]
				to := users[(w+i+1)%len(users)]
				_, _ = l.Transfer(guildID, from, to, int64(1+i%40))
			}
		}()
	}
	wg.Wait()

	var sum int64
	for _, a := range l.Accounts(guildID) {
		require.GreaterOrEqual(t, a.Cur1, int64(0), "user %s went negative", a.UserID)
		sum += a.Cur1
	}
	assert.Equal(t, int64(500), sum)
	require.NoError(t, l.Verify(guildID))
}

func TestGuildsAreIsolated(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())

	_, err := l.Transaction("g1", []Entry{{UserID: "alice", Delta: 10}})
	require.NoError(t, err)
	_, err = l.Transaction("g2", []Entry{{UserID: "alice", Delta: 99}})
	require.NoError(t, err)

	assert.Equal(t, int64(10), l.GuildTotal("g1"))
	assert.Equal(t, int64(99), l.GuildTotal("g2"))

	s := l.Stats()
	assert.Equal(t, 2, s.Guilds)
	assert.Equal(t, 2, s.Accounts)
	assert.Equal(t, uint64(2), s.Committed)
}

func TestVerifyDetectsDrift(t *testing.T) {
	l, _ := newTestLedger(t, DefaultConfig())
	seed(t, l, map[string]int64{"alice": 10})

	g, _ := l.lookup(guildID)
	g.mu.Lock()
	g.total = 11
	g.mu.Unlock()

	var de *DriftError
	require.ErrorAs(t, l.Verify(guildID), &de)
	assert.Equal(t, int64(11), de.Running)
	assert.Equal(t, int64(10), de.Actual)
	assert.NoError(t, l.Verify("unknown"))
}

func TestInsufficientFundsMessage(t *testing.T) {
	err := error(&InsufficientFundsError{UserID: "A", Currency: Cur1, Balance: 100, Required: 110})
	assert.Equal(t, "ledger: insufficient cur1 for user A: balance 100, required 110", err.Error())
	assert.False(t, errors.Is(err, ErrCooldown))
	assert.Equal(t, fmt.Sprint(err), err.Error())
}
