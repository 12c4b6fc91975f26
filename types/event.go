package types

import "time"

// LoanEventType names a change in a loan's lifecycle.
type LoanEventType string

// Published loan event types.
const (
	LoanEventCreated  LoanEventType = "loan.created"
	LoanEventReturned LoanEventType = "loan.returned"
	LoanEventOverdue  LoanEventType = "loan.overdue"
)

// LoanEvent is the payload published on the loan events channel.
type LoanEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the lifecycle change being reported.
	Type LoanEventType `json:"type"`

	// LoanID, UserID and BookID identify the loan and its parties.
	LoanID int `json:"loanId"`
	UserID int `json:"userId"`
	BookID int `json:"bookId"`

	// DueAt is the loan's due date.
	DueAt time.Time `json:"dueAt"`

	// DaysOverdue is set on loan.overdue reminders.
	DaysOverdue int `json:"daysOverdue,omitempty"`

	// OccurredAt is when the change happened.
	OccurredAt time.Time `json:"occurredAt"`
}
