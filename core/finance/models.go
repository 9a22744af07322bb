package finance

import (
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
)

const DateLayout = "2006-01-02"

// Status is the payment status of a StudentFee.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

type PaymentMethod string

const (
	MethodCash        PaymentMethod = "CASH"
	MethodCard        PaymentMethod = "CARD"
	MethodTransfer    PaymentMethod = "TRANSFER"
	MethodMobileMoney PaymentMethod = "MOBILE_MONEY"
	MethodCheque      PaymentMethod = "CHEQUE"
)

var PaymentMethods = []PaymentMethod{MethodCash, MethodCard, MethodTransfer, MethodMobileMoney, MethodCheque}

func (m PaymentMethod) IsValid() bool {
	for _, pm := range PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

type (
	// FeeStructure is a named chargeable item used as a template for charging students.
	FeeStructure struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Amount         decimal.Decimal `json:"amount"`
		Description    *string         `json:"description"`
		DueDate        *time.Time      `json:"due_date"`
		AcademicYearID *string         `json:"academic_year_id"`
		CreatedAt      time.Time       `json:"created_at"`
		UpdatedAt      time.Time       `json:"updated_at"`
	}

	// StudentFee is a FeeStructure charged to one student.
	// Status is only a cache of DeriveStatus over the fee's payments.
	StudentFee struct {
		ID             string    `json:"id"`
		StudentID      string    `json:"student_id"`
		FeeStructureID string    `json:"fee_structure_id"`
		Status         Status    `json:"status"`
		CreatedAt      time.Time `json:"created_at"`
		UpdatedAt      time.Time `json:"updated_at"`
	}

	// Payment is an immutable amount paid against a StudentFee.
	Payment struct {
		ID           string          `json:"id"`
		StudentFeeID string          `json:"student_fee_id"`
		Amount       decimal.Decimal `json:"amount"`
		Method       PaymentMethod   `json:"method"`
		Reference    *string         `json:"reference"`
		RecordedBy   *string         `json:"recorded_by"`
		PaidAt       time.Time       `json:"paid_at"`
	}
)

// NewFeeStructure contains information needed to create a new FeeStructure.
type NewFeeStructure struct {
	Name           string          `json:"name" validate:"required,notblank,max=200"`
	Amount         decimal.Decimal `json:"amount" validate:"dgt0"`
	Description    *string         `json:"description" validate:"omitempty,max=1000"`
	DueDate        *string         `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	AcademicYearID *string         `json:"academic_year_id" validate:"omitempty,max=64"`
}

func (nfs *NewFeeStructure) Validate(validate *validator.Validate) error {
	nfs.Name = core.CleanString(nfs.Name)
	nfs.Description = core.OptionalString(nfs.Description)
	nfs.DueDate = core.OptionalString(nfs.DueDate)
	nfs.AcademicYearID = core.OptionalString(nfs.AcademicYearID)
	if err := validate.Struct(nfs); err != nil {
		return err
	}
	return validateAmount(nfs.Amount)
}

func (nfs NewFeeStructure) dueDate() *time.Time {
	if nfs.DueDate == nil {
		return nil
	}
	d, err := time.Parse(DateLayout, *nfs.DueDate)
	if err != nil { // already validated
		return nil
	}
	return &d
}

// NewAssignment charges a FeeStructure to a student.
type NewAssignment struct {
	StudentID      string `json:"student_id" validate:"required,notblank"`
	FeeStructureID string `json:"fee_structure_id" validate:"required,notblank"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.StudentID = core.CleanString(na.StudentID)
	na.FeeStructureID = core.CleanString(na.FeeStructureID)
	return validate.Struct(na)
}

// NewBulkAssignment charges a FeeStructure to several students at once.
type NewBulkAssignment struct {
	FeeStructureID string   `json:"fee_structure_id" validate:"required,notblank"`
	StudentIDs     []string `json:"student_ids" validate:"required,min=1,max=500,dive,required,notblank"`
}

func (nba *NewBulkAssignment) Validate(validate *validator.Validate) error {
	nba.FeeStructureID = core.CleanString(nba.FeeStructureID)
	for i, id := range nba.StudentIDs {
		nba.StudentIDs[i] = core.CleanString(id)
	}
	return validate.Struct(nba)
}

// NewPayment contains information needed to record a Payment.
type NewPayment struct {
	StudentFeeID string          `json:"student_fee_id" validate:"required,notblank"`
	Amount       decimal.Decimal `json:"amount" validate:"dgt0"`
	Method       PaymentMethod   `json:"method" validate:"required,paymethod"`
	Reference    *string         `json:"reference" validate:"omitempty,max=100"`
	RecordedBy   *string         `json:"-"` // set from the authenticated caller
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentFeeID = core.CleanString(np.StudentFeeID)
	np.Method = PaymentMethod(strings.ToUpper(core.CleanString(string(np.Method))))
	np.Reference = core.OptionalString(np.Reference)
	np.RecordedBy = core.OptionalString(np.RecordedBy)
	if err := validate.Struct(np); err != nil {
		return err
	}
	return validateAmount(np.Amount)
}

// amounts are stored as NUMERIC(14, 2)
var maxAmount = decimal.New(1, 12)

func validateAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must have at most 2 decimal places"})
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be less than 1000000000000"})
	}
	return nil
}

type QueryFilter struct {
	Search string // case-insensitive substring of the name
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// FeeStructureOrderings maps the orderable fields of a FeeStructure query to their columns.
var FeeStructureOrderings = map[string]string{
	"name":       "name",
	"amount":     "amount",
	"due_date":   "due_date",
	"created_at": "created_at",
}

// DefaultFeeStructureOrdering is newest first.
var DefaultFeeStructureOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}

// cleanOrdering drops unknown fields and falls back to DefaultFeeStructureOrdering.
func cleanOrdering(ordering []core.DBOrdering) []core.DBOrdering {
	cleaned := make([]core.DBOrdering, 0, len(ordering))
	seen := make(map[string]bool, len(ordering))
	for _, ord := range ordering {
		col, ok := FeeStructureOrderings[ord.Field]
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		cleaned = append(cleaned, core.DBOrdering{Field: col, Ascending: ord.Ascending})
	}
	if len(cleaned) == 0 {
		return DefaultFeeStructureOrdering
	}
	return cleaned
}

var (
	payMethodTag  = "paymethod"
	payMethodText = "must be one of CASH, CARD, TRANSFER, MOBILE_MONEY, CHEQUE"
)

// InitValidators registers the validations specific to finance inputs.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(payMethodTag, payMethodValidation)
	core.RegisterCustomTranslation(validate, translator, payMethodTag, payMethodText)
}

func payMethodValidation(fl validator.FieldLevel) bool {
	return PaymentMethod(fl.Field().String()).IsValid()
}
