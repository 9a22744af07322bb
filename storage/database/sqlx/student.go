package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/student"
)

type studentRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Email         *string   `db:"email"`
	GuardianEmail *string   `db:"guardian_email"`
	ClassName     *string   `db:"class_name"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		GuardianEmail: r.GuardianEmail,
		ClassName:     r.ClassName,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

const studentColumns = "id, name, email, guardian_email, class_name, created_at, updated_at"

type studentRepository struct {
	exec core.DBExecutor
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{exec: exec}
}

func (repo studentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	std.ID = uuid.New().String()
	exe := repo.getExec(exec)

	q := "INSERT INTO students (" + studentColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := exe.ExecContext(ctx, exe.Rebind(q),
		std.ID, std.Name, std.Email, std.GuardianEmail, std.ClassName, std.CreatedAt.UTC(), std.UpdatedAt.UTC())
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row studentRow
	q := "SELECT " + studentColumns + " FROM students WHERE id = ?"
	if err := exe.GetContext(ctx, &row, exe.Rebind(q), id); err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student by ID")
	}
	return row.student(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, page core.Page, exec ...core.DBExecutor) ([]student.Student, int, error) {
	exe := repo.getExec(exec)

	var where []string
	var args []interface{}
	if filter != nil && filter.Search != "" {
		// students with Name or ClassName matching the search keyword
		val := containsPattern(filter.Search)
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(class_name) LIKE ? ESCAPE '\')`)
		args = append(args, val, val)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := exe.GetContext(ctx, &total, exe.Rebind("SELECT COUNT(*) FROM students"+cond), args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting students")
	}

	var rows []studentRow
	q := "SELECT " + studentColumns + " FROM students" + cond + " ORDER BY name ASC, id ASC LIMIT ? OFFSET ?"
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), append(args, page.Size, page.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "querying students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, total, nil
}
