package finance

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		totalPaid string
		amount    string
		want      Status
	}{
		{name: "nothing paid", totalPaid: "0", amount: "500", want: StatusPending},
		{name: "negative total", totalPaid: "-1", amount: "500", want: StatusPending},
		{name: "one cent", totalPaid: "0.01", amount: "500", want: StatusPartial},
		{name: "partial", totalPaid: "200", amount: "500", want: StatusPartial},
		{name: "one cent short", totalPaid: "499.99", amount: "500", want: StatusPartial},
		{name: "exact", totalPaid: "500", amount: "500", want: StatusPaid},
		{name: "exact, different scale", totalPaid: "500.00", amount: "500", want: StatusPaid},
		{name: "overpaid", totalPaid: "600", amount: "500", want: StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(dec(tt.totalPaid), dec(tt.amount)))
		})
	}
}

func TestBuildLedger(t *testing.T) {
	t0 := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	tuition := FeeStructure{ID: "fs-tuition", Name: "Tuition", Amount: dec("500")}
	bus := FeeStructure{ID: "fs-bus", Name: "Bus", Amount: dec("300")}
	structures := map[string]FeeStructure{tuition.ID: tuition, bus.ID: bus}

	// given out of order on purpose
	fees := []StudentFee{
		{ID: "sf-b", StudentID: "s1", FeeStructureID: bus.ID, Status: StatusPaid /* stale */, CreatedAt: t0.Add(time.Hour)},
		{ID: "sf-a", StudentID: "s1", FeeStructureID: tuition.ID, Status: StatusPending /* stale */, CreatedAt: t0},
		{ID: "sf-orphan", StudentID: "s1", FeeStructureID: "fs-unknown", CreatedAt: t0},
	}
	payments := []Payment{
		{ID: "p2", StudentFeeID: "sf-a", Amount: dec("300"), PaidAt: t0.Add(2 * time.Hour)},
		{ID: "p1", StudentFeeID: "sf-a", Amount: dec("200"), PaidAt: t0.Add(time.Hour)},
	}

	ledger := BuildLedger("s1", fees, structures, payments)

	assert.Equal(t, "s1", ledger.StudentID)
	assert.True(t, ledger.Summary.TotalDue.Equal(dec("800")), "totalDue = %s", ledger.Summary.TotalDue)
	assert.True(t, ledger.Summary.TotalPaid.Equal(dec("500")), "totalPaid = %s", ledger.Summary.TotalPaid)
	assert.True(t, ledger.Summary.Outstanding.Equal(dec("300")), "outstanding = %s", ledger.Summary.Outstanding)

	require.Len(t, ledger.Items, 2)
	first, second := ledger.Items[0], ledger.Items[1]

	assert.Equal(t, "sf-a", first.StudentFeeID)
	assert.Equal(t, StatusPaid, first.Status) // derived, not the stored PENDING
	assert.True(t, first.Balance.IsZero())
	require.Len(t, first.Payments, 2)
	assert.Equal(t, "p1", first.Payments[0].ID)
	assert.Equal(t, "p2", first.Payments[1].ID)

	assert.Equal(t, "sf-b", second.StudentFeeID)
	assert.Equal(t, StatusPending, second.Status) // derived, not the stored PAID
	assert.True(t, second.Balance.Equal(dec("300")))
	assert.NotNil(t, second.Payments)
	assert.Empty(t, second.Payments)
}

func TestBuildLedger_empty(t *testing.T) {
	ledger := BuildLedger("s1", nil, nil, nil)

	assert.NotNil(t, ledger.Items)
	assert.Empty(t, ledger.Items)
	assert.True(t, ledger.Summary.TotalDue.IsZero())
	assert.True(t, ledger.Summary.TotalPaid.IsZero())
	assert.True(t, ledger.Summary.Outstanding.IsZero())
}

func TestBuildLedger_overpayment(t *testing.T) {
	fs := FeeStructure{ID: "fs", Amount: dec("500")}
	fees := []StudentFee{{ID: "sf", FeeStructureID: fs.ID}}
	payments := []Payment{{ID: "p", StudentFeeID: "sf", Amount: dec("600")}}

	ledger := BuildLedger("s1", fees, map[string]FeeStructure{fs.ID: fs}, payments)

	require.Len(t, ledger.Items, 1)
	assert.Equal(t, StatusPaid, ledger.Items[0].Status)
	assert.True(t, ledger.Items[0].Balance.Equal(dec("-100")))
	assert.True(t, ledger.Summary.Outstanding.Equal(dec("-100")))
}

func Test_cleanOrdering(t *testing.T) {
	tests := []struct {
		name     string
		ordering []string // "-" prefix for descending
		want     []string
	}{
		{name: "none", want: []string{"created_at DESC"}},
		{name: "unknown only", ordering: []string{"password"}, want: []string{"created_at DESC"}},
		{name: "injection", ordering: []string{"name; DROP TABLE payments"}, want: []string{"created_at DESC"}},
		{name: "known", ordering: []string{"-amount", "name"}, want: []string{"amount DESC", "name ASC"}},
		{name: "duplicates", ordering: []string{"name", "-name"}, want: []string{"name ASC"}},
		{name: "mixed", ordering: []string{"lol", "due_date"}, want: []string{"due_date ASC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in []core.DBOrdering
			for _, o := range tt.ordering {
				in = append(in, core.DBOrdering{Field: strings.TrimPrefix(o, "-"), Ascending: !strings.HasPrefix(o, "-")})
			}
			got := make([]string, 0)
			for _, ord := range cleanOrdering(in) {
				got = append(got, ord.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
