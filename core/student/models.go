package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-fees/core"
)

type Student struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         *string   `json:"email"`
	GuardianEmail *string   `json:"guardian_email"`
	ClassName     *string   `json:"class_name"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// Recipients returns the addresses a finance notification for this student goes to.
func (s Student) Recipients() []string {
	rcpts := make([]string, 0, 2)
	if s.Email != nil {
		rcpts = append(rcpts, *s.Email)
	}
	if s.GuardianEmail != nil && (s.Email == nil || *s.GuardianEmail != *s.Email) {
		rcpts = append(rcpts, *s.GuardianEmail)
	}
	return rcpts
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name          string  `json:"name" validate:"required,notblank,max=200"`
	Email         *string `json:"email" validate:"omitempty,email"`
	GuardianEmail *string `json:"guardian_email" validate:"omitempty,email"`
	ClassName     *string `json:"class_name" validate:"omitempty,max=50"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.OptionalString(ns.Email, true /* lower */)
	ns.GuardianEmail = core.OptionalString(ns.GuardianEmail, true /* lower */)
	ns.ClassName = core.OptionalString(ns.ClassName)
	return validate.Struct(ns)
}

type QueryFilter struct {
	Search string // case-insensitive match on Name or ClassName
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
