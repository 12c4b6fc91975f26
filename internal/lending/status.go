package lending

import (
	"math"
	"time"

	"github.com/bibliotheque/apiserver/types"
)

const day = 24 * time.Hour

// Classify derives a loan's status from its dates. A loan is RETURNED once
// it has a return date, OVERDUE while open past its due date, ACTIVE otherwise.
// The stored status is ignored.
func Classify(loan types.Loan, now time.Time) types.LoanStatus {
	if loan.ReturnedAt != nil {
		return types.LoanReturned
	}
	if loan.DueAt.Before(now) {
		return types.LoanOverdue
	}
	return types.LoanActive
}

// Classified returns loan with Status refreshed for now.
func Classified(loan types.Loan, now time.Time) types.Loan {
	loan.Status = Classify(loan, now)
	return loan
}

// DaysRemaining is the number of days until due, rounded up. It goes
// negative once the due date has passed.
func DaysRemaining(due, now time.Time) int {
	return ceilDays(due.Sub(now))
}

// DaysOverdue is the number of whole days elapsed since due, or 0 when due
// is still ahead.
func DaysOverdue(due, now time.Time) int {
	if !due.Before(now) {
		return 0
	}
	return int(now.Sub(due) / day)
}

// DurationDays is the number of days between from and to, rounded up.
func DurationDays(from, to time.Time) int {
	return ceilDays(to.Sub(from))
}

// Describe classifies a joined loan and fills the day counts shown in
// listings: days remaining for open loans, days overdue for late ones and
// the loan duration for returned ones.
func Describe(details types.LoanDetails, now time.Time) types.LoanDetails {
	details.Loan = Classified(details.Loan, now)
	details.DaysRemaining = nil
	details.DaysOverdue = nil
	details.DurationDays = nil

	switch details.Status {
	case types.LoanReturned:
		duration := DurationDays(details.LoanedAt, *details.ReturnedAt)
		details.DurationDays = &duration
	case types.LoanOverdue:
		overdue := DaysOverdue(details.DueAt, now)
		remaining := DaysRemaining(details.DueAt, now)
		details.DaysOverdue = &overdue
		details.DaysRemaining = &remaining
	default:
		remaining := DaysRemaining(details.DueAt, now)
		details.DaysRemaining = &remaining
	}
	return details
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}
