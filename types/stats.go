package types

// DashboardStats aggregates counts across members, books and loans.
type DashboardStats struct {
	// TotalUsers is the number of registered members.
	TotalUsers int `json:"totalUsers"`

	// TotalBooks is the number of titles in the catalogue.
	TotalBooks int `json:"totalBooks"`

	// AvailableBooks is the number of titles with at least one free copy.
	AvailableBooks int `json:"availableBooks"`

	// CurrentLoans is the number of open loans that are not yet due.
	CurrentLoans int `json:"currentLoans"`

	// OverdueLoans is the number of open loans past their due date.
	OverdueLoans int `json:"overdueLoans"`

	// Unavailable lists the statistics that could not be computed because
	// their source could not be loaded. Their values are reported as zero.
	Unavailable []string `json:"unavailable,omitempty"`
}
