package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("student not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		// GetStudent returns ErrNotFound if no Student has the given ID.
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// QueryStudents returns a page of Students ordered by name and the total count matching the filter.
		QueryStudents(ctx context.Context, filter *QueryFilter, page core.Page, exec ...core.DBExecutor) ([]Student, int, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	now := NowFunc().UTC().Truncate(time.Microsecond)
	std, err := svc.repo.CreateStudent(ctx, Student{
		Name:          ns.Name,
		Email:         ns.Email,
		GuardianEmail: ns.GuardianEmail,
		ClassName:     ns.ClassName,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	return std, errors.Wrap(err, "creating student")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(id))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, page core.Page) ([]Student, int, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, filter, page)
}
