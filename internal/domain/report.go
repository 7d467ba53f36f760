package domain

import "time"

// PatronReport summarizes a patron's open loans, fees owed and loan history.
// Error is set, and everything else left empty, when the patron id is malformed.
type PatronReport struct {
	PatronID          string          `json:"patron_id,omitempty"`
	CurrentlyBorrowed []*ActiveBorrow `json:"currently_borrowed_books"`
	TotalBorrowed     int             `json:"total_borrowed"`
	TotalLateFees     float64         `json:"total_late_fees"`
	BorrowingHistory  []*HistoryEntry `json:"borrowing_history"`
	Error             string          `json:"error,omitempty"`
}

// NewPatronReport assembles a report from a patron's open loans and history.
// Late fees are summed over the overdue loans using the shared fee schedule.
func NewPatronReport(patronID string, active []*ActiveBorrow, history []*HistoryEntry, now time.Time) *PatronReport {
	if active == nil {
		active = []*ActiveBorrow{}
	}
	if history == nil {
		history = []*HistoryEntry{}
	}

	var cents int
	for _, a := range active {
		if a.IsOverdue {
			cents += LateFeeCents(DaysOverdue(a.DueDate, now))
		}
	}

	return &PatronReport{
		PatronID:          patronID,
		CurrentlyBorrowed: active,
		TotalBorrowed:     len(active),
		TotalLateFees:     CentsToDollars(cents),
		BorrowingHistory:  history,
	}
}

// PatronReportError returns the empty report carrying an error message.
func PatronReportError(msg string) *PatronReport {
	return &PatronReport{
		CurrentlyBorrowed: []*ActiveBorrow{},
		BorrowingHistory:  []*HistoryEntry{},
		Error:             msg,
	}
}
