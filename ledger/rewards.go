package ledger

import "time"

// ClaimKind identifies a periodic reward.
type ClaimKind string

const (
	Daily  ClaimKind = "daily"
	Weekly ClaimKind = "weekly"
)

// Claim describes a granted reward.
type Claim struct {
	Kind    ClaimKind
	Reward  int64
	Balance Balance
	NextAt  time.Time
}

// Daily grants the daily reward once per rolling DailyWindow.
func (l *Ledger) Daily(guildID, userID string) (Claim, error) {
	return l.claim(guildID, userID, Daily)
}

// Weekly grants the weekly reward once per rolling WeeklyWindow.
func (l *Ledger) Weekly(guildID, userID string) (Claim, error) {
	return l.claim(guildID, userID, Weekly)
}

func (l *Ledger) claim(guildID, userID string, kind ClaimKind) (Claim, error) {
	if guildID == "" || userID == "" {
		l.rejected.Add(1)
		return Claim{}, invalid(-1, "empty guild or user id")
	}

	reward, window := l.cfg.DailyReward, l.cfg.DailyWindow
	if kind == Weekly {
		reward, window = l.cfg.WeeklyReward, l.cfg.WeeklyWindow
	}

	g := l.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()

	a := g.account(guildID, userID)
	last := &a.LastDailyAt
	if kind == Weekly {
		last = &a.LastWeeklyAt
	}

	now := l.now()
	if !last.IsZero() {
		if elapsed := now.Sub(*last); elapsed < window {
			l.rejected.Add(1)
			return Claim{}, &CooldownError{Kind: kind, Remaining: window - elapsed}
		}
	}

	cur1, ok := addInt64(a.Cur1, reward)
	if !ok {
		l.rejected.Add(1)
		return Claim{}, invalid(-1, "balance overflow")
	}
	total, ok := addInt64(g.total, reward)
	if !ok {
		l.rejected.Add(1)
		return Claim{}, invalid(-1, "guild total overflow")
	}

	a.Cur1 = cur1
	g.total = total
	*last = now
	l.committed.Add(1)

	return Claim{
		Kind:    kind,
		Reward:  reward,
		Balance: l.balanceOf(g, a),
		NextAt:  now.Add(window),
	}, nil
}
