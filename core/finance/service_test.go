package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/finance"
	"github.com/trezcool/masomo-fees/core/student"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
	testutil "github.com/trezcool/masomo-fees/tests"
)

type fixture struct {
	svc         *finance.Service
	repo        finance.Repository
	stdRepo     student.Repository
	broadcaster *testutil.Broadcaster
}

func setup(t *testing.T) fixture {
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewFinanceRepository(db)
	stdRepo := sqlxrepos.NewStudentRepository(db)
	broadcaster := new(testutil.Broadcaster)
	return fixture{
		svc:         finance.NewService(db, repo, stdRepo, testutil.NewValidator(), broadcaster, testutil.Logger{}),
		repo:        repo,
		stdRepo:     stdRepo,
		broadcaster: broadcaster,
	}
}

func (f fixture) assign(t *testing.T, studentID, feeStructureID string) finance.StudentFee {
	t.Helper()
	sf, err := f.svc.AssignFee(context.Background(), finance.NewAssignment{StudentID: studentID, FeeStructureID: feeStructureID})
	require.NoError(t, err)
	return sf
}

func (f fixture) pay(t *testing.T, studentFeeID, amount string) finance.Payment {
	t.Helper()
	pmt, err := f.svc.RecordPayment(context.Background(), finance.NewPayment{
		StudentFeeID: studentFeeID,
		Amount:       testutil.Decimal(t, amount),
		Method:       finance.MethodCash,
	})
	require.NoError(t, err)
	return pmt
}

func (f fixture) ledger(t *testing.T, studentID string) finance.Ledger {
	t.Helper()
	ledger, err := f.svc.GetStudentLedger(context.Background(), studentID)
	require.NoError(t, err)
	return ledger
}

func (f fixture) item(t *testing.T, studentID, studentFeeID string) finance.LedgerItem {
	t.Helper()
	for _, it := range f.ledger(t, studentID).Items {
		if it.StudentFeeID == studentFeeID {
			return it
		}
	}
	t.Fatalf("student fee %s not in ledger of %s", studentFeeID, studentID)
	return finance.LedgerItem{}
}

func assertDecimal(t *testing.T, want string, got interface{ String() string }) {
	t.Helper()
	assert.Equal(t, testutil.Decimal(t, want).String(), got.String())
}

func TestService_CreateFeeStructure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     finance.NewFeeStructure
		wantValid bool
	}{
		{name: "empty", input: finance.NewFeeStructure{}},
		{name: "blank name", input: finance.NewFeeStructure{Name: "   ", Amount: testutil.Decimal(t, "500")}},
		{name: "zero amount", input: finance.NewFeeStructure{Name: "Tuition"}},
		{name: "negative amount", input: finance.NewFeeStructure{Name: "Tuition", Amount: testutil.Decimal(t, "-1")}},
		{name: "sub-cent amount", input: finance.NewFeeStructure{Name: "Tuition", Amount: testutil.Decimal(t, "0.001")}},
		{name: "bad due date", input: finance.NewFeeStructure{Name: "Tuition", Amount: testutil.Decimal(t, "500"), DueDate: testutil.StrPtr("01/09/2026")}},
		{name: "minimal", input: finance.NewFeeStructure{Name: " Tuition ", Amount: testutil.Decimal(t, "500")}, wantValid: true},
		{
			name: "full",
			input: finance.NewFeeStructure{
				Name:           "Bus",
				Amount:         testutil.Decimal(t, "120.50"),
				Description:    testutil.StrPtr("Term 1 bus pass"),
				DueDate:        testutil.StrPtr("2026-09-01"),
				AcademicYearID: testutil.StrPtr("2026-2027"),
			},
			wantValid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := f.svc.CreateFeeStructure(ctx, tt.input)
			if !tt.wantValid {
				assert.True(t, core.IsValidationError(err), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, fs.ID)

			got, err := f.svc.GetFeeStructure(ctx, fs.ID)
			require.NoError(t, err)
			assert.Equal(t, core.CleanString(tt.input.Name), got.Name)
			assert.True(t, tt.input.Amount.Equal(got.Amount))
			assert.Equal(t, tt.input.Description, got.Description)
			assert.Equal(t, tt.input.AcademicYearID, got.AcademicYearID)
			if tt.input.DueDate != nil {
				require.NotNil(t, got.DueDate)
				assert.Equal(t, *tt.input.DueDate, got.DueDate.Format(finance.DateLayout))
			} else {
				assert.Nil(t, got.DueDate)
			}
		})
	}
}

func TestService_GetFeeStructure_notFound(t *testing.T) {
	f := setup(t)

	for _, id := range []string{"", "lol", "4f1bd1f7-5f9c-4bb4-a8a4-4b2b1a0c5b61"} {
		_, err := f.svc.GetFeeStructure(context.Background(), id)
		assert.True(t, core.IsNotFound(err), "id %q: err = %v", id, err)
		assert.Equal(t, finance.ErrFeeStructureNotFound, errors.Cause(err))
	}
}

func TestService_QueryFeeStructures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t0 := time.Now().UTC().Truncate(time.Second)
	tuition := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500", t0)
	bus := testutil.CreateFeeStructure(t, f.repo, "Bus", "120", t0.Add(time.Minute))
	lunch := testutil.CreateFeeStructure(t, f.repo, "Lunch", "80.5", t0.Add(2*time.Minute))
	exam := testutil.CreateFeeStructure(t, f.repo, "Exam TUITION top-up", "25", t0.Add(3*time.Minute))

	ids := func(list []finance.FeeStructure) []string {
		out := make([]string, 0, len(list))
		for _, fs := range list {
			out = append(out, fs.ID)
		}
		return out
	}

	tests := []struct {
		name      string
		search    string
		ordering  []core.DBOrdering
		page      core.Page
		want      []string
		wantTotal int
	}{
		{name: "default: newest first", page: core.NewPage(1, 0), want: ids([]finance.FeeStructure{exam, lunch, bus, tuition}), wantTotal: 4},
		{name: "search is case-insensitive", search: "tuiTion", page: core.NewPage(1, 0), want: ids([]finance.FeeStructure{exam, tuition}), wantTotal: 2},
		{name: "search (unknown)", search: "lol", page: core.NewPage(1, 0), want: []string{}, wantTotal: 0},
		{name: "paging", page: core.NewPage(2, 3), want: ids([]finance.FeeStructure{tuition}), wantTotal: 4},
		{name: "page out of range", page: core.NewPage(3, 3), want: []string{}, wantTotal: 4},
		{
			name: "order by amount", page: core.NewPage(1, 0), ordering: []core.DBOrdering{{Field: "amount", Ascending: true}},
			want: ids([]finance.FeeStructure{exam, lunch, bus, tuition}), wantTotal: 4,
		},
		{
			name: "order by -name", page: core.NewPage(1, 0), ordering: []core.DBOrdering{{Field: "name"}},
			want: ids([]finance.FeeStructure{tuition, lunch, exam, bus}), wantTotal: 4,
		},
		{
			name: "unknown ordering ignored", page: core.NewPage(1, 0), ordering: []core.DBOrdering{{Field: "id; --"}},
			want: ids([]finance.FeeStructure{exam, lunch, bus, tuition}), wantTotal: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := f.svc.QueryFeeStructures(ctx, &finance.QueryFilter{Search: tt.search}, tt.ordering, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestService_QueryFeeStructures_wildcards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	discount := testutil.CreateFeeStructure(t, f.repo, "Discount 50%", "100")
	testutil.CreateFeeStructure(t, f.repo, `Bus \ Lunch`, "90")

	tests := []struct {
		name      string
		search    string
		wantTotal int
	}{
		{name: "percent", search: "%", wantTotal: 1},
		{name: "underscore", search: "_", wantTotal: 0},
		{name: "backslash", search: `\`, wantTotal: 1},
		{name: "percent suffix", search: "50%", wantTotal: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := f.svc.QueryFeeStructures(ctx, &finance.QueryFilter{Search: tt.search}, nil, core.NewPage(1, 0))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Len(t, got, tt.wantTotal)
		})
	}

	got, _, err := f.svc.QueryFeeStructures(ctx, &finance.QueryFilter{Search: "%"}, nil, core.NewPage(1, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, discount.ID, got[0].ID)
}

func TestService_AssignFee(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	unknownID := "0c7a8c6e-9a8c-4f0e-8a55-1f4dbb0b54d1"

	tests := []struct {
		name    string
		input   finance.NewAssignment
		wantErr error
	}{
		{name: "unknown student", input: finance.NewAssignment{StudentID: unknownID, FeeStructureID: fs.ID}, wantErr: student.ErrNotFound},
		{name: "unknown fee structure", input: finance.NewAssignment{StudentID: std.ID, FeeStructureID: unknownID}, wantErr: finance.ErrFeeStructureNotFound},
		{name: "assigned", input: finance.NewAssignment{StudentID: std.ID, FeeStructureID: fs.ID}},
		{name: "assigned twice", input: finance.NewAssignment{StudentID: std.ID, FeeStructureID: fs.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sf, err := f.svc.AssignFee(ctx, tt.input)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, finance.StatusPending, sf.Status)
			assert.Equal(t, std.ID, sf.StudentID)
			assert.Equal(t, fs.ID, sf.FeeStructureID)
		})
	}

	_, err := f.svc.AssignFee(ctx, finance.NewAssignment{})
	assert.True(t, core.IsValidationError(err))

	assert.Len(t, f.ledger(t, std.ID).Items, 2)
	assert.Len(t, f.broadcaster.Events(core.TopicFeeAssigned), 2)
}

func TestService_AssignFeeBulk(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s1 := testutil.CreateStudent(t, f.stdRepo, "One")
	s2 := testutil.CreateStudent(t, f.stdRepo, "Two")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")

	t.Run("unknown student aborts the batch", func(t *testing.T) {
		_, err := f.svc.AssignFeeBulk(ctx, finance.NewBulkAssignment{
			FeeStructureID: fs.ID,
			StudentIDs:     []string{s1.ID, "0c7a8c6e-9a8c-4f0e-8a55-1f4dbb0b54d1", s2.ID},
		})
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
		assert.Empty(t, f.ledger(t, s1.ID).Items)
		assert.Empty(t, f.ledger(t, s2.ID).Items)
	})

	t.Run("no students", func(t *testing.T) {
		_, err := f.svc.AssignFeeBulk(ctx, finance.NewBulkAssignment{FeeStructureID: fs.ID, StudentIDs: []string{}})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("assigned to all", func(t *testing.T) {
		fees, err := f.svc.AssignFeeBulk(ctx, finance.NewBulkAssignment{FeeStructureID: fs.ID, StudentIDs: []string{s1.ID, s2.ID}})
		require.NoError(t, err)
		require.Len(t, fees, 2)
		for _, sf := range fees {
			assert.Equal(t, finance.StatusPending, sf.Status)
		}
		assert.Len(t, f.ledger(t, s1.ID).Items, 1)
		assert.Len(t, f.ledger(t, s2.ID).Items, 1)
	})
}

// Tuition 500: pay 200 then 300.
func TestService_RecordPayment_partialThenPaid(t *testing.T) {
	f := setup(t)

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	sf := f.assign(t, std.ID, fs.ID)

	it := f.item(t, std.ID, sf.ID)
	assert.Equal(t, finance.StatusPending, it.Status)
	assertDecimal(t, "500", it.Balance)

	f.pay(t, sf.ID, "200")
	it = f.item(t, std.ID, sf.ID)
	assert.Equal(t, finance.StatusPartial, it.Status)
	assertDecimal(t, "300", it.Balance)

	f.pay(t, sf.ID, "300")
	it = f.item(t, std.ID, sf.ID)
	assert.Equal(t, finance.StatusPaid, it.Status)
	assertDecimal(t, "0", it.Balance)

	stored, err := f.repo.GetStudentFee(context.Background(), sf.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, stored.Status)

	evts := f.broadcaster.Events(core.TopicPaymentRecorded)
	require.Len(t, evts, 2)
	assert.Equal(t, "student:"+std.ID, evts[1].Room)
	payload, ok := evts[1].Payload.(finance.PaymentRecorded)
	require.True(t, ok)
	assert.Equal(t, finance.StatusPaid, payload.StudentFee.Status)
	assert.Equal(t, "Tuition", payload.FeeName)
}

func TestService_RecordPayment_overpayment(t *testing.T) {
	f := setup(t)

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	sf := f.assign(t, std.ID, fs.ID)

	f.pay(t, sf.ID, "600")

	it := f.item(t, std.ID, sf.ID)
	assert.Equal(t, finance.StatusPaid, it.Status)
	assertDecimal(t, "-100", it.Balance)
}

func TestService_RecordPayment_rejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	sf := f.assign(t, std.ID, fs.ID)

	tests := []struct {
		name         string
		input        finance.NewPayment
		wantValidErr bool
		wantErr      error
	}{
		{name: "zero amount", input: finance.NewPayment{StudentFeeID: sf.ID, Method: finance.MethodCash}, wantValidErr: true},
		{name: "negative amount", input: finance.NewPayment{StudentFeeID: sf.ID, Amount: testutil.Decimal(t, "-5"), Method: finance.MethodCash}, wantValidErr: true},
		{name: "sub-cent amount", input: finance.NewPayment{StudentFeeID: sf.ID, Amount: testutil.Decimal(t, "0.005"), Method: finance.MethodCash}, wantValidErr: true},
		{name: "unknown method", input: finance.NewPayment{StudentFeeID: sf.ID, Amount: testutil.Decimal(t, "5"), Method: "BITCOIN"}, wantValidErr: true},
		{name: "no student fee", input: finance.NewPayment{Amount: testutil.Decimal(t, "5"), Method: finance.MethodCash}, wantValidErr: true},
		{
			name:    "unknown student fee",
			input:   finance.NewPayment{StudentFeeID: "9b2b3c52-2b8e-4a59-9e0e-9fd1b7d6c111", Amount: testutil.Decimal(t, "5"), Method: finance.MethodCash},
			wantErr: finance.ErrStudentFeeNotFound,
		},
		{
			name:    "malformed student fee id",
			input:   finance.NewPayment{StudentFeeID: "lol", Amount: testutil.Decimal(t, "5"), Method: finance.MethodCash},
			wantErr: finance.ErrStudentFeeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordPayment(ctx, tt.input)
			if tt.wantValidErr {
				assert.True(t, core.IsValidationError(err), "err = %v", err)
			} else {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				assert.True(t, core.IsNotFound(err))
			}
		})
	}

	// no side effects
	pmts, err := f.svc.QueryPayments(ctx, sf.ID)
	require.NoError(t, err)
	assert.Empty(t, pmts)

	stored, err := f.repo.GetStudentFee(ctx, sf.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPending, stored.Status)
	assert.Empty(t, f.broadcaster.Events(core.TopicPaymentRecorded))
}

func TestService_RecordPayment_normalizesInput(t *testing.T) {
	f := setup(t)

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	sf := f.assign(t, std.ID, fs.ID)

	pmt, err := f.svc.RecordPayment(context.Background(), finance.NewPayment{
		StudentFeeID: " " + sf.ID + " ",
		Amount:       testutil.Decimal(t, "10"),
		Method:       " mobile_money ",
		Reference:    testutil.StrPtr("  "),
		RecordedBy:   testutil.StrPtr("cashier-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, finance.MethodMobileMoney, pmt.Method)
	assert.Nil(t, pmt.Reference)
	require.NotNil(t, pmt.RecordedBy)
	assert.Equal(t, "cashier-1", *pmt.RecordedBy)
}

func TestService_RecordPayment_monotonic(t *testing.T) {
	f := setup(t)

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "1000")
	sf := f.assign(t, std.ID, fs.ID)

	prev := f.item(t, std.ID, sf.ID).PaidAmount
	for _, amount := range []string{"0.01", "99.99", "250", "1000", "3.5"} {
		f.pay(t, sf.ID, amount)
		paid := f.item(t, std.ID, sf.ID).PaidAmount
		assertDecimal(t, prev.Add(testutil.Decimal(t, amount)).String(), paid)
		assert.True(t, paid.GreaterThan(prev))
		prev = paid
	}
}

func TestService_RecordPayment_concurrent(t *testing.T) {
	f := setup(t)

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	sf := f.assign(t, std.ID, fs.ID)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordPayment(context.Background(), finance.NewPayment{
				StudentFeeID: sf.ID,
				Amount:       testutil.Decimal(t, "50"),
				Method:       finance.MethodCard,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	it := f.item(t, std.ID, sf.ID)
	assertDecimal(t, "500", it.PaidAmount)
	assert.Equal(t, finance.StatusPaid, it.Status)

	stored, err := f.repo.GetStudentFee(context.Background(), sf.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, stored.Status)
}

func TestService_QueryPayments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	sf := f.assign(t, std.ID, fs.ID)
	other := f.assign(t, std.ID, fs.ID)

	p1 := f.pay(t, sf.ID, "100")
	f.pay(t, other.ID, "1")
	p2 := f.pay(t, sf.ID, "150")

	pmts, err := f.svc.QueryPayments(ctx, sf.ID)
	require.NoError(t, err)
	require.Len(t, pmts, 2)
	assert.Equal(t, p1.ID, pmts[0].ID)
	assert.Equal(t, p2.ID, pmts[1].ID)

	_, err = f.svc.QueryPayments(ctx, "9b2b3c52-2b8e-4a59-9e0e-9fd1b7d6c111")
	assert.Equal(t, finance.ErrStudentFeeNotFound, errors.Cause(err))
}

func TestService_GetStudentLedger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	classmate := testutil.CreateStudent(t, f.stdRepo, "Classmate")
	tuition := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	bus := testutil.CreateFeeStructure(t, f.repo, "Bus", "300")

	t.Run("unknown student", func(t *testing.T) {
		_, err := f.svc.GetStudentLedger(ctx, "0c7a8c6e-9a8c-4f0e-8a55-1f4dbb0b54d1")
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})

	t.Run("no fees", func(t *testing.T) {
		ledger := f.ledger(t, std.ID)
		assert.Empty(t, ledger.Items)
		assertDecimal(t, "0", ledger.Summary.TotalDue)
		assertDecimal(t, "0", ledger.Summary.Outstanding)
	})

	// one fee fully paid, one untouched
	paid := f.assign(t, std.ID, tuition.ID)
	untouched := f.assign(t, std.ID, bus.ID)
	f.pay(t, paid.ID, "500")
	f.assign(t, classmate.ID, tuition.ID)

	t.Run("summary", func(t *testing.T) {
		ledger := f.ledger(t, std.ID)
		assertDecimal(t, "800", ledger.Summary.TotalDue)
		assertDecimal(t, "500", ledger.Summary.TotalPaid)
		assertDecimal(t, "300", ledger.Summary.Outstanding)

		require.Len(t, ledger.Items, 2)
		assert.Equal(t, paid.ID, ledger.Items[0].StudentFeeID)
		assert.Equal(t, finance.StatusPaid, ledger.Items[0].Status)
		assert.Equal(t, "Tuition", ledger.Items[0].FeeStructure.Name)
		assert.Len(t, ledger.Items[0].Payments, 1)
		assert.Equal(t, untouched.ID, ledger.Items[1].StudentFeeID)
		assert.Equal(t, finance.StatusPending, ledger.Items[1].Status)
		assert.Empty(t, ledger.Items[1].Payments)
	})

	t.Run("totalDue ignores payments", func(t *testing.T) {
		before := f.ledger(t, std.ID).Summary.TotalDue
		f.pay(t, untouched.ID, "42")
		after := f.ledger(t, std.ID).Summary
		assertDecimal(t, before.String(), after.TotalDue)
		assertDecimal(t, after.TotalDue.Sub(after.TotalPaid).String(), after.Outstanding)
	})

	t.Run("idempotent reads", func(t *testing.T) {
		assert.Equal(t, f.ledger(t, std.ID), f.ledger(t, std.ID))
	})

	t.Run("status derived from payments, not storage", func(t *testing.T) {
		require.NoError(t, f.repo.UpdateStudentFeeStatus(ctx, paid.ID, finance.StatusPending, time.Now()))
		assert.Equal(t, finance.StatusPaid, f.item(t, std.ID, paid.ID).Status)
	})
}

func TestService_Reconcile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	std := testutil.CreateStudent(t, f.stdRepo, "Hero")
	fs := testutil.CreateFeeStructure(t, f.repo, "Tuition", "500")
	a := f.assign(t, std.ID, fs.ID)
	b := f.assign(t, std.ID, fs.ID)
	c := f.assign(t, std.ID, fs.ID)
	f.pay(t, a.ID, "500")
	f.pay(t, b.ID, "100")

	n, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// drift the stored statuses
	require.NoError(t, f.repo.UpdateStudentFeeStatus(ctx, a.ID, finance.StatusPartial, time.Now()))
	require.NoError(t, f.repo.UpdateStudentFeeStatus(ctx, c.ID, finance.StatusPaid, time.Now()))

	n, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want := map[string]finance.Status{a.ID: finance.StatusPaid, b.ID: finance.StatusPartial, c.ID: finance.StatusPending}
	for id, status := range want {
		stored, err := f.repo.GetStudentFee(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, stored.Status, id)
	}
}
