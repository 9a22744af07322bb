package finance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DeriveStatus returns the status of a fee of `amount` once `totalPaid` has been paid against it.
// Overpayment is PAID.
func DeriveStatus(totalPaid, amount decimal.Decimal) Status {
	switch {
	case totalPaid.Sign() <= 0:
		return StatusPending
	case totalPaid.LessThan(amount):
		return StatusPartial
	default:
		return StatusPaid
	}
}

// SumPayments returns the total amount of payments.
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

type (
	Ledger struct {
		StudentID string        `json:"student_id"`
		Summary   LedgerSummary `json:"summary"`
		Items     []LedgerItem  `json:"items"`
	}

	LedgerSummary struct {
		TotalDue    decimal.Decimal `json:"total_due"`
		TotalPaid   decimal.Decimal `json:"total_paid"`
		Outstanding decimal.Decimal `json:"outstanding"` // negative on overpayment
	}

	LedgerItem struct {
		StudentFeeID string          `json:"student_fee_id"`
		FeeStructure FeeStructure    `json:"fee_structure"`
		Amount       decimal.Decimal `json:"amount"`
		PaidAmount   decimal.Decimal `json:"paid_amount"`
		Balance      decimal.Decimal `json:"balance"`
		Status       Status          `json:"status"`
		AssignedAt   time.Time       `json:"assigned_at"`
		Payments     []Payment       `json:"payments"`
	}
)

// BuildLedger aggregates a student's fees and their payments.
// Statuses are derived from the payments, never read from the stored StudentFee.Status.
// Fees whose structure is missing from `structures` are skipped.
func BuildLedger(studentID string, fees []StudentFee, structures map[string]FeeStructure, payments []Payment) Ledger {
	byFee := make(map[string][]Payment, len(fees))
	for _, p := range payments {
		byFee[p.StudentFeeID] = append(byFee[p.StudentFeeID], p)
	}

	sorted := append([]StudentFee(nil), fees...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	ledger := Ledger{
		StudentID: studentID,
		Summary: LedgerSummary{
			TotalDue:  decimal.Zero,
			TotalPaid: decimal.Zero,
		},
		Items: make([]LedgerItem, 0, len(sorted)),
	}
	for _, sf := range sorted {
		fs, ok := structures[sf.FeeStructureID]
		if !ok {
			continue
		}
		pmts := byFee[sf.ID]
		if pmts == nil {
			pmts = []Payment{}
		}
		sort.SliceStable(pmts, func(i, j int) bool {
			if pmts[i].PaidAt.Equal(pmts[j].PaidAt) {
				return pmts[i].ID < pmts[j].ID
			}
			return pmts[i].PaidAt.Before(pmts[j].PaidAt)
		})

		paid := SumPayments(pmts)
		ledger.Items = append(ledger.Items, LedgerItem{
			StudentFeeID: sf.ID,
			FeeStructure: fs,
			Amount:       fs.Amount,
			PaidAmount:   paid,
			Balance:      fs.Amount.Sub(paid),
			Status:       DeriveStatus(paid, fs.Amount),
			AssignedAt:   sf.CreatedAt,
			Payments:     pmts,
		})
		ledger.Summary.TotalDue = ledger.Summary.TotalDue.Add(fs.Amount)
		ledger.Summary.TotalPaid = ledger.Summary.TotalPaid.Add(paid)
	}
	ledger.Summary.Outstanding = ledger.Summary.TotalDue.Sub(ledger.Summary.TotalPaid)
	return ledger
}
