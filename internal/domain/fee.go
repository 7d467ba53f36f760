package domain

import (
	"fmt"
	"math"
	"time"
)

// Late fee schedule, in cents.
const (
	FirstTierDays       = 7
	FirstTierDailyCents = 50
	LaterDailyCents     = 100
	MaxLateFeeCents     = 1500
)

// MaxLateFee is the late fee cap in dollars. Refunds may never exceed it.
const MaxLateFee = float64(MaxLateFeeCents) / 100

// LateFeeStatusSuccess is reported when a loan is not overdue.
const LateFeeStatusSuccess = "Success"

// LateFee is the outcome of a fee lookup. Input problems are reported through
// Status with a zero fee so the shape never changes.
type LateFee struct {
	FeeAmount   float64 `json:"fee_amount"`
	DaysOverdue int     `json:"days_overdue"`
	Status      string  `json:"status"`
}

// DaysOverdue returns the whole days elapsed since due, or zero if now is not past due.
func DaysOverdue(due, now time.Time) int {
	elapsed := now.Sub(due)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}

// LateFeeCents applies the tiered schedule to a number of overdue days:
// 50 cents a day for the first week, a dollar a day after that, capped at fifteen dollars.
func LateFeeCents(days int) int {
	if days <= 0 {
		return 0
	}
	var cents int
	if days <= FirstTierDays {
		cents = days * FirstTierDailyCents
	} else {
		cents = FirstTierDays*FirstTierDailyCents + (days-FirstTierDays)*LaterDailyCents
	}
	return min(cents, MaxLateFeeCents)
}

// LateFeeFor returns the fee in dollars for a number of overdue days.
func LateFeeFor(days int) float64 {
	return CentsToDollars(LateFeeCents(days))
}

// NewLateFee computes the fee owed on a loan due at due, as of now.
func NewLateFee(due, now time.Time) LateFee {
	days := DaysOverdue(due, now)
	status := LateFeeStatusSuccess
	if days > 0 {
		status = fmt.Sprintf("Overdue by %d days", days)
	}
	return LateFee{
		FeeAmount:   LateFeeFor(days),
		DaysOverdue: days,
		Status:      status,
	}
}

// LateFeeError returns the zero-fee shape carrying an error status.
func LateFeeError(status string) LateFee {
	return LateFee{Status: status}
}

// CentsToDollars converts an integer cent amount to dollars.
func CentsToDollars(cents int) float64 {
	return float64(cents) / 100
}

// RoundCents rounds a dollar amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
