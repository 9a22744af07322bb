package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/finance"
)

type (
	feeStructureRow struct {
		ID             string          `db:"id"`
		Name           string          `db:"name"`
		Amount         decimal.Decimal `db:"amount"`
		Description    *string         `db:"description"`
		DueDate        *time.Time      `db:"due_date"`
		AcademicYearID *string         `db:"academic_year_id"`
		CreatedAt      time.Time       `db:"created_at"`
		UpdatedAt      time.Time       `db:"updated_at"`
	}

	studentFeeRow struct {
		ID             string    `db:"id"`
		StudentID      string    `db:"student_id"`
		FeeStructureID string    `db:"fee_structure_id"`
		Status         string    `db:"status"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	paymentRow struct {
		ID           string          `db:"id"`
		StudentFeeID string          `db:"student_fee_id"`
		Amount       decimal.Decimal `db:"amount"`
		Method       string          `db:"method"`
		Reference    *string         `db:"reference"`
		RecordedBy   *string         `db:"recorded_by"`
		PaidAt       time.Time       `db:"paid_at"`
	}
)

const (
	feeStructureColumns = "id, name, amount, description, due_date, academic_year_id, created_at, updated_at"
	studentFeeColumns   = "id, student_id, fee_structure_id, status, created_at, updated_at"
	paymentColumns      = "id, student_fee_id, amount, method, reference, recorded_by, paid_at"
)

func (r feeStructureRow) feeStructure() finance.FeeStructure {
	fs := finance.FeeStructure{
		ID:             r.ID,
		Name:           r.Name,
		Amount:         r.Amount,
		Description:    r.Description,
		AcademicYearID: r.AcademicYearID,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.DueDate != nil {
		d := dateOnly(*r.DueDate)
		fs.DueDate = &d
	}
	return fs
}

func (r studentFeeRow) studentFee() finance.StudentFee {
	return finance.StudentFee{
		ID:             r.ID,
		StudentID:      r.StudentID,
		FeeStructureID: r.FeeStructureID,
		Status:         finance.Status(r.Status),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func (r paymentRow) payment() finance.Payment {
	return finance.Payment{
		ID:           r.ID,
		StudentFeeID: r.StudentFeeID,
		Amount:       r.Amount,
		Method:       finance.PaymentMethod(r.Method),
		Reference:    r.Reference,
		RecordedBy:   r.RecordedBy,
		PaidAt:       r.PaidAt.UTC(),
	}
}

// dateOnly drops the clock and zone of a DATE column value.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type financeRepository struct {
	exec core.DBExecutor
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(exec core.DBExecutor) *financeRepository {
	return &financeRepository{exec: exec}
}

func (repo financeRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps the "no rows" err to notFound
func (repo financeRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// selectIn runs a query holding a single `IN (?)` clause expanded with ids.
func (repo financeRepository) selectIn(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, ids []string) error {
	q, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return exe.SelectContext(ctx, dest, exe.Rebind(q), args...)
}

// Fee Structures

func (repo financeRepository) CreateFeeStructure(ctx context.Context, fs finance.FeeStructure, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	fs.ID = uuid.New().String()
	exe := repo.getExec(exec)

	var dueDate *time.Time
	if fs.DueDate != nil {
		d := dateOnly(*fs.DueDate)
		dueDate = &d
		fs.DueDate = &d
	}

	q := "INSERT INTO fee_structures (" + feeStructureColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := exe.ExecContext(ctx, exe.Rebind(q),
		fs.ID, fs.Name, fs.Amount, fs.Description, dueDate, fs.AcademicYearID, fs.CreatedAt.UTC(), fs.UpdatedAt.UTC())
	if err != nil {
		return finance.FeeStructure{}, errors.Wrap(err, "inserting fee structure")
	}
	return fs, nil
}

func (repo financeRepository) GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	if _, err := uuid.Parse(id); err != nil {
		return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
	}
	exe := repo.getExec(exec)

	var row feeStructureRow
	q := "SELECT " + feeStructureColumns + " FROM fee_structures WHERE id = ?"
	if err := exe.GetContext(ctx, &row, exe.Rebind(q), id); err != nil {
		return finance.FeeStructure{}, repo.trapNoRowsErr(err, finance.ErrFeeStructureNotFound, "finding fee structure by ID")
	}
	return row.feeStructure(), nil
}

func (repo financeRepository) GetFeeStructures(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]finance.FeeStructure, error) {
	if len(ids) == 0 {
		return []finance.FeeStructure{}, nil
	}

	var rows []feeStructureRow
	q := "SELECT " + feeStructureColumns + " FROM fee_structures WHERE id IN (?)"
	if err := repo.selectIn(ctx, repo.getExec(exec), &rows, q, ids); err != nil {
		return nil, errors.Wrap(err, "getting fee structures")
	}

	structures := make([]finance.FeeStructure, 0, len(rows))
	for _, r := range rows {
		structures = append(structures, r.feeStructure())
	}
	return structures, nil
}

func (repo financeRepository) QueryFeeStructures(
	ctx context.Context,
	filter *finance.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
	exec ...core.DBExecutor,
) ([]finance.FeeStructure, int, error) {
	exe := repo.getExec(exec)

	var cond string
	var args []interface{}
	if filter != nil && filter.Search != "" {
		cond = ` WHERE LOWER(name) LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(filter.Search))
	}

	var total int
	if err := exe.GetContext(ctx, &total, exe.Rebind("SELECT COUNT(*) FROM fee_structures"+cond), args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting fee structures")
	}

	// ordering fields are whitelisted by the service
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "id ASC")

	var rows []feeStructureRow
	q := "SELECT " + feeStructureColumns + " FROM fee_structures" + cond +
		" ORDER BY " + strings.Join(orderList, ", ") + " LIMIT ? OFFSET ?"
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), append(args, page.Size, page.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "querying fee structures")
	}

	structures := make([]finance.FeeStructure, 0, len(rows))
	for _, r := range rows {
		structures = append(structures, r.feeStructure())
	}
	return structures, total, nil
}

// Student Fees

func (repo financeRepository) CreateStudentFee(ctx context.Context, sf finance.StudentFee, exec ...core.DBExecutor) (finance.StudentFee, error) {
	sf.ID = uuid.New().String()
	exe := repo.getExec(exec)

	q := "INSERT INTO student_fees (" + studentFeeColumns + ") VALUES (?, ?, ?, ?, ?, ?)"
	_, err := exe.ExecContext(ctx, exe.Rebind(q),
		sf.ID, sf.StudentID, sf.FeeStructureID, string(sf.Status), sf.CreatedAt.UTC(), sf.UpdatedAt.UTC())
	if err != nil {
		return finance.StudentFee{}, errors.Wrap(err, "inserting student fee")
	}
	return sf, nil
}

func (repo financeRepository) GetStudentFee(ctx context.Context, id string, exec ...core.DBExecutor) (finance.StudentFee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return finance.StudentFee{}, finance.ErrStudentFeeNotFound
	}
	exe := repo.getExec(exec)

	var row studentFeeRow
	q := "SELECT " + studentFeeColumns + " FROM student_fees WHERE id = ?"
	if err := exe.GetContext(ctx, &row, exe.Rebind(q), id); err != nil {
		return finance.StudentFee{}, repo.trapNoRowsErr(err, finance.ErrStudentFeeNotFound, "finding student fee by ID")
	}
	return row.studentFee(), nil
}

func (repo financeRepository) LockStudentFee(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return finance.ErrStudentFeeNotFound
	}
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE student_fees SET updated_at = ? WHERE id = ?"), at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "locking student fee")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "locking student fee")
	}
	if n == 0 {
		return finance.ErrStudentFeeNotFound
	}
	return nil
}

func (repo financeRepository) UpdateStudentFeeStatus(ctx context.Context, id string, status finance.Status, at time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	q := "UPDATE student_fees SET status = ?, updated_at = ? WHERE id = ?"
	res, err := exe.ExecContext(ctx, exe.Rebind(q), string(status), at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating student fee status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return finance.ErrStudentFeeNotFound
	}
	return nil
}

func (repo financeRepository) QueryStudentFees(ctx context.Context, filter finance.StudentFeeFilter, exec ...core.DBExecutor) ([]finance.StudentFee, error) {
	exe := repo.getExec(exec)

	var cond string
	var args []interface{}
	if filter.StudentID != "" {
		cond = " WHERE student_id = ?"
		args = append(args, filter.StudentID)
	}

	var rows []studentFeeRow
	q := "SELECT " + studentFeeColumns + " FROM student_fees" + cond + " ORDER BY created_at ASC, id ASC"
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying student fees")
	}

	fees := make([]finance.StudentFee, 0, len(rows))
	for _, r := range rows {
		fees = append(fees, r.studentFee())
	}
	return fees, nil
}

// Payments

func (repo financeRepository) CreatePayment(ctx context.Context, pmt finance.Payment, exec ...core.DBExecutor) (finance.Payment, error) {
	pmt.ID = uuid.New().String()
	exe := repo.getExec(exec)

	q := "INSERT INTO payments (" + paymentColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := exe.ExecContext(ctx, exe.Rebind(q),
		pmt.ID, pmt.StudentFeeID, pmt.Amount, string(pmt.Method), pmt.Reference, pmt.RecordedBy, pmt.PaidAt.UTC())
	if err != nil {
		return finance.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return pmt, nil
}

func (repo financeRepository) QueryPayments(ctx context.Context, studentFeeIDs []string, exec ...core.DBExecutor) ([]finance.Payment, error) {
	if len(studentFeeIDs) == 0 {
		return []finance.Payment{}, nil
	}

	var rows []paymentRow
	q := "SELECT " + paymentColumns + " FROM payments WHERE student_fee_id IN (?) ORDER BY paid_at ASC, id ASC"
	if err := repo.selectIn(ctx, repo.getExec(exec), &rows, q, studentFeeIDs); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}

	payments := make([]finance.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.payment())
	}
	return payments, nil
}
