package lending

import "time"

// Loan length bounds, in days.
const (
	DefaultLoanDays = 14
	MinLoanDays     = 1
	MaxLoanDays     = 30
)

// LoanDays resolves a requested loan length. Nil selects DefaultLoanDays;
// other values are clamped to [MinLoanDays, MaxLoanDays].
func LoanDays(requested *int) int {
	if requested == nil {
		return DefaultLoanDays
	}
	switch days := *requested; {
	case days < MinLoanDays:
		return MinLoanDays
	case days > MaxLoanDays:
		return MaxLoanDays
	default:
		return days
	}
}

// DueDate adds days calendar days to loanedAt.
func DueDate(loanedAt time.Time, days int) time.Time {
	return loanedAt.AddDate(0, 0, days)
}
