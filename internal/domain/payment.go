package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned by ParseAmount for text that is not a finite number.
var ErrInvalidAmount = errors.New("invalid amount")

// Payment confirms a late fee charge. TransactionID is empty when nothing was owed.
type Payment struct {
	TransactionID string  `json:"transaction_id,omitempty"`
	Charged       float64 `json:"charged"`
	DaysOverdue   int     `json:"days_overdue"`
	Message       string  `json:"message,omitempty"`
}

// Refund confirms a refund against an earlier late fee charge.
type Refund struct {
	RefundID string  `json:"refund_id"`
	Refunded float64 `json:"refunded"`
}

// ParseAmount parses a dollar amount such as "3.50".
func ParseAmount(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
