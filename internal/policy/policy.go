// Package policy holds the pure rules that parameterize circulation:
// loan periods, hold windows and fine tariffs.
package policy

import "time"

const day = 24 * time.Hour

// Borrower is the patron side of a loan as seen by the loan policy.
type Borrower interface {
	IsPremiumMembership() bool
}

// Lendable is the copy side of a loan as seen by the loan policy.
type Lendable interface {
	IsOlderVersion() bool
}

// LoanPolicy computes due dates.
type LoanPolicy struct {
	BaseDays     int
	ExtendedDays int
	Now          func() time.Time
}

// DefaultLoanPolicy lends for 14 days, 28 for premium patrons or older copies.
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{BaseDays: 14, ExtendedDays: 28, Now: time.Now}
}

// DueDate returns loanDate plus the loan period. The extended period applies
// when the borrower is premium or the copy is an older version; both at once
// still give the extended period.
func (p LoanPolicy) DueDate(loanDate time.Time, b Borrower, l Lendable) time.Time {
	return loanDate.AddDate(0, 0, p.period(b, l))
}

// RenewalDueDate applies the loan period from the current date.
func (p LoanPolicy) RenewalDueDate(b Borrower, l Lendable) time.Time {
	return p.DueDate(p.now(), b, l)
}

func (p LoanPolicy) period(b Borrower, l Lendable) int {
	if b.IsPremiumMembership() || l.IsOlderVersion() {
		return p.ExtendedDays
	}
	return p.BaseDays
}

func (p LoanPolicy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// HoldPolicy computes hold windows.
type HoldPolicy struct {
	Days int
	Now  func() time.Time
}

// DefaultHoldPolicy keeps holds for 7 days.
func DefaultHoldPolicy() HoldPolicy {
	return HoldPolicy{Days: 7, Now: time.Now}
}

// ExpiryDate returns requestDate plus the hold window.
func (p HoldPolicy) ExpiryDate(requestDate time.Time) time.Time {
	return requestDate.AddDate(0, 0, p.Days)
}

// IsExpired reports whether a hold requested on requestDate has outlived its
// window as of today. The last day of the window is still valid.
func (p HoldPolicy) IsExpired(requestDate time.Time) bool {
	return p.IsExpiredAt(requestDate, p.now())
}

// IsExpiredAt is IsExpired evaluated at now.
func (p HoldPolicy) IsExpiredAt(requestDate, now time.Time) bool {
	return DaysBetween(requestDate, now) > p.Days
}

func (p HoldPolicy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// FinePolicy computes late fines in cents.
type FinePolicy struct {
	DailyRateCents int64
	// MaxAmountCents caps a single fine; zero means uncapped.
	MaxAmountCents int64
}

// DefaultFinePolicy charges 25 cents a day, capped at 10.00.
func DefaultFinePolicy() FinePolicy {
	return FinePolicy{DailyRateCents: 25, MaxAmountCents: 1000}
}

// Amount returns the fine for daysLate days.
func (p FinePolicy) Amount(daysLate int) int64 {
	if daysLate <= 0 {
		return 0
	}
	amount := int64(daysLate) * p.DailyRateCents
	if p.MaxAmountCents > 0 && amount > p.MaxAmountCents {
		return p.MaxAmountCents
	}
	return amount
}

// DaysLate returns the whole calendar days now is past dueDate, never negative.
func DaysLate(dueDate, now time.Time) int {
	return max(DaysBetween(dueDate, now), 0)
}

// DaysBetween counts calendar days from a to b, ignoring the time of day.
func DaysBetween(a, b time.Time) int {
	a = truncateDay(a)
	b = truncateDay(b.In(a.Location()))
	return int(b.Sub(a).Round(day) / day)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
