package domain

import "time"

// Circulation policy.
const (
	LoanPeriod       = 14 * 24 * time.Hour
	MaxActiveBorrows = 5
)

// DateLayout is how due and return dates appear in confirmations.
const DateLayout = "2006-01-02"

// BorrowRecord links a patron to a borrowed book. A record is open while
// ReturnDate is nil and closed once the book comes back; records are never deleted.
type BorrowRecord struct {
	ID         int64      `json:"id"`
	PatronID   string     `json:"patron_id"`
	BookID     int64      `json:"book_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// NewBorrowRecord opens a loan starting at now and due one loan period later.
func NewBorrowRecord(patronID string, bookID int64, now time.Time) *BorrowRecord {
	return &BorrowRecord{
		PatronID:   patronID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.Add(LoanPeriod),
	}
}

// IsReturned reports whether the loan has been closed.
func (r *BorrowRecord) IsReturned() bool {
	return r.ReturnDate != nil
}

// IsOverdue reports whether an open loan is past its due date at now.
func (r *BorrowRecord) IsOverdue(now time.Time) bool {
	return !r.IsReturned() && r.DueDate.Before(now)
}

// ActiveBorrow is an open loan joined with the borrowed book's title and author.
type ActiveBorrow struct {
	BookID     int64     `json:"book_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	BorrowDate time.Time `json:"borrow_date"`
	DueDate    time.Time `json:"due_date"`
	IsOverdue  bool      `json:"is_overdue"`
}

// NewActiveBorrow joins an open record with its book's title and author.
func NewActiveBorrow(r *BorrowRecord, title, author string, now time.Time) *ActiveBorrow {
	return &ActiveBorrow{
		BookID:     r.BookID,
		Title:      title,
		Author:     author,
		BorrowDate: r.BorrowDate,
		DueDate:    r.DueDate,
		IsOverdue:  r.IsOverdue(now),
	}
}

// HistoryEntry is any loan, open or closed, joined with the book's title and author.
type HistoryEntry struct {
	BookID     int64      `json:"book_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}
