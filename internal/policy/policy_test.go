package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

type patron bool

func (p patron) IsPremiumMembership() bool { return bool(p) }

type copyOf bool

func (c copyOf) IsOlderVersion() bool { return bool(c) }

const (
	regular = patron(false)
	premium = patron(true)
	newCopy = copyOf(false)
	oldCopy = copyOf(true)
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueDate(t *testing.T) {
	p := DefaultLoanPolicy()
	loanDate := date(2025, time.January, 1)

	tests := []struct {
		name string
		b    Borrower
		l    Lendable
		want time.Time
	}{
		{"regular patron, new copy", regular, newCopy, date(2025, time.January, 15)},
		{"premium patron, new copy", premium, newCopy, date(2025, time.January, 29)},
		{"regular patron, older copy", regular, oldCopy, date(2025, time.January, 29)},
		{"premium patron, older copy", premium, oldCopy, date(2025, time.January, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.DueDate(loanDate, tt.b, tt.l))
		})
	}
}

func TestRenewalDueDateStartsToday(t *testing.T) {
	p := DefaultLoanPolicy()
	p.Now = func() time.Time { return date(2025, time.March, 10) }

	assert.Equal(t, date(2025, time.March, 24), p.RenewalDueDate(regular, newCopy))
	assert.Equal(t, date(2025, time.April, 7), p.RenewalDueDate(premium, oldCopy))
}

func TestExtendedPeriodIsNeverAdditive(t *testing.T) {
	p := DefaultLoanPolicy()
	rapid.Check(t, func(t *rapid.T) {
		loanDate := date(2025, time.January, 1).AddDate(0, 0, rapid.IntRange(0, 3650).Draw(t, "offset"))
		b := patron(rapid.Bool().Draw(t, "premium"))
		l := copyOf(rapid.Bool().Draw(t, "older"))

		days := DaysBetween(loanDate, p.DueDate(loanDate, b, l))
		want := 14
		if bool(b) || bool(l) {
			want = 28
		}
		if days != want {
			t.Fatalf("premium=%v older=%v: got %d days, want %d", b, l, days, want)
		}
	})
}

func TestHoldExpiryDate(t *testing.T) {
	assert.Equal(t, date(2025, time.January, 8), DefaultHoldPolicy().ExpiryDate(date(2025, time.January, 1)))
}

func TestIsHoldExpired(t *testing.T) {
	today := time.Date(2025, time.June, 20, 15, 30, 0, 0, time.UTC)
	p := DefaultHoldPolicy()
	p.Now = func() time.Time { return today }

	assert.False(t, p.IsExpired(today))
	assert.False(t, p.IsExpired(today.AddDate(0, 0, -7)), "the seventh day is still inside the window")
	assert.True(t, p.IsExpired(today.AddDate(0, 0, -8)))
	assert.True(t, p.IsExpired(today.AddDate(0, 0, -10)))
}

func TestIsHoldExpiredIgnoresTimeOfDay(t *testing.T) {
	p := DefaultHoldPolicy()
	requested := time.Date(2025, time.June, 13, 23, 59, 0, 0, time.UTC)
	now := time.Date(2025, time.June, 20, 0, 1, 0, 0, time.UTC)

	assert.False(t, p.IsExpiredAt(requested, now))
	assert.True(t, p.IsExpiredAt(requested, now.AddDate(0, 0, 1)))
}

func TestHoldExpiryBoundaryProperty(t *testing.T) {
	p := DefaultHoldPolicy()
	rapid.Check(t, func(t *rapid.T) {
		now := date(2025, time.January, 1).AddDate(0, 0, rapid.IntRange(0, 3650).Draw(t, "day"))
		age := rapid.IntRange(0, 60).Draw(t, "age")
		requested := now.AddDate(0, 0, -age)

		expired := p.IsExpiredAt(requested, now)
		if expired != (age > 7) {
			t.Fatalf("age %d: expired=%v", age, expired)
		}
		if expired != now.After(p.ExpiryDate(requested)) {
			t.Fatalf("age %d: IsExpiredAt disagrees with ExpiryDate", age)
		}
	})
}

func TestFineAmount(t *testing.T) {
	p := DefaultFinePolicy()

	assert.Zero(t, p.Amount(0))
	assert.Zero(t, p.Amount(-3))
	assert.Equal(t, int64(25), p.Amount(1))
	assert.Equal(t, int64(250), p.Amount(10))
	assert.Equal(t, int64(1000), p.Amount(400), "capped")

	uncapped := FinePolicy{DailyRateCents: 50}
	assert.Equal(t, int64(20000), uncapped.Amount(400))
}

func TestDaysLate(t *testing.T) {
	due := date(2025, time.January, 15)

	assert.Zero(t, DaysLate(due, date(2025, time.January, 10)))
	assert.Zero(t, DaysLate(due, due.Add(20*time.Hour)))
	assert.Equal(t, 3, DaysLate(due, date(2025, time.January, 18)))
}
