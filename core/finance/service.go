package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/student"
)

var (
	// errors
	ErrFeeStructureNotFound = core.NewNotFoundError("fee structure not found")
	ErrStudentFeeNotFound   = core.NewNotFoundError("student fee not found")

	NowFunc = time.Now // mockable
)

func now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

type (
	StudentFeeFilter struct {
		StudentID string // all students when empty
	}

	Repository interface {
		CreateFeeStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		// GetFeeStructure returns ErrFeeStructureNotFound if no FeeStructure has the given ID.
		GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (FeeStructure, error)
		GetFeeStructures(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]FeeStructure, error)
		QueryFeeStructures(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]FeeStructure, int, error)

		CreateStudentFee(ctx context.Context, sf StudentFee, exec ...core.DBExecutor) (StudentFee, error)
		// GetStudentFee returns ErrStudentFeeNotFound if no StudentFee has the given ID.
		GetStudentFee(ctx context.Context, id string, exec ...core.DBExecutor) (StudentFee, error)
		// LockStudentFee bumps the StudentFee's updated_at, holding its row lock until the transaction ends.
		// Returns ErrStudentFeeNotFound if no StudentFee has the given ID.
		LockStudentFee(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
		UpdateStudentFeeStatus(ctx context.Context, id string, status Status, at time.Time, exec ...core.DBExecutor) error
		// QueryStudentFees returns the matching StudentFees ordered by created_at then id.
		QueryStudentFees(ctx context.Context, filter StudentFeeFilter, exec ...core.DBExecutor) ([]StudentFee, error)

		CreatePayment(ctx context.Context, pmt Payment, exec ...core.DBExecutor) (Payment, error)
		// QueryPayments returns the payments of the given StudentFees ordered by paid_at then id.
		QueryPayments(ctx context.Context, studentFeeIDs []string, exec ...core.DBExecutor) ([]Payment, error)
	}

	// PaymentRecorded is the payload of core.TopicPaymentRecorded events.
	PaymentRecorded struct {
		Payment    Payment    `json:"payment"`
		StudentFee StudentFee `json:"student_fee"`
		FeeName    string     `json:"fee_name"`
	}

	Service struct {
		db          core.DB
		repo        Repository
		studentRepo student.Repository
		validate    *validator.Validate
		broadcaster core.Broadcaster
		logger      core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	studentRepo student.Repository,
	validate *validator.Validate,
	broadcaster core.Broadcaster,
	logger core.Logger,
) *Service {
	if broadcaster == nil {
		broadcaster = core.NopBroadcaster{}
	}
	return &Service{
		db:          db,
		repo:        repo,
		studentRepo: studentRepo,
		validate:    validate,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Fee Structures

func (svc *Service) CreateFeeStructure(ctx context.Context, nfs NewFeeStructure) (FeeStructure, error) {
	if err := nfs.Validate(svc.validate); err != nil {
		return FeeStructure{}, err
	}
	tstamp := now()
	fs, err := svc.repo.CreateFeeStructure(ctx, FeeStructure{
		Name:           nfs.Name,
		Amount:         nfs.Amount,
		Description:    nfs.Description,
		DueDate:        nfs.dueDate(),
		AcademicYearID: nfs.AcademicYearID,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	return fs, errors.Wrap(err, "creating fee structure")
}

func (svc *Service) GetFeeStructure(ctx context.Context, id string) (FeeStructure, error) {
	return svc.repo.GetFeeStructure(ctx, core.CleanString(id))
}

// QueryFeeStructures returns a page of FeeStructures and the total count matching the filter.
// Unknown ordering fields are ignored; the default ordering is newest first.
func (svc *Service) QueryFeeStructures(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]FeeStructure, int, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryFeeStructures(ctx, filter, cleanOrdering(ordering), page)
}

// Assignments

func (svc *Service) AssignFee(ctx context.Context, na NewAssignment) (StudentFee, error) {
	if err := na.Validate(svc.validate); err != nil {
		return StudentFee{}, err
	}

	var sf StudentFee
	err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		fees, err := svc.assign(ctx, na.FeeStructureID, []string{na.StudentID}, exec)
		if err != nil {
			return err
		}
		sf = fees[0]
		return nil
	})
	if err != nil {
		return StudentFee{}, err
	}

	svc.publishAssigned(ctx, sf)
	return sf, nil
}

// AssignFeeBulk charges a FeeStructure to every listed student, or to none of them.
func (svc *Service) AssignFeeBulk(ctx context.Context, nba NewBulkAssignment) ([]StudentFee, error) {
	if err := nba.Validate(svc.validate); err != nil {
		return nil, err
	}

	var fees []StudentFee
	err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) (err error) {
		fees, err = svc.assign(ctx, nba.FeeStructureID, nba.StudentIDs, exec)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, sf := range fees {
		svc.publishAssigned(ctx, sf)
	}
	return fees, nil
}

func (svc *Service) assign(ctx context.Context, feeStructureID string, studentIDs []string, exec core.DBExecutor) ([]StudentFee, error) {
	if _, err := svc.repo.GetFeeStructure(ctx, feeStructureID, exec); err != nil {
		return nil, errors.Wrap(err, "finding fee structure")
	}

	fees := make([]StudentFee, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		if _, err := svc.studentRepo.GetStudent(ctx, studentID, exec); err != nil {
			return nil, errors.Wrapf(err, "finding student %s", studentID)
		}
		tstamp := now()
		sf, err := svc.repo.CreateStudentFee(ctx, StudentFee{
			StudentID:      studentID,
			FeeStructureID: feeStructureID,
			Status:         StatusPending,
			CreatedAt:      tstamp,
			UpdatedAt:      tstamp,
		}, exec)
		if err != nil {
			return nil, errors.Wrap(err, "creating student fee")
		}
		fees = append(fees, sf)
	}
	return fees, nil
}

func (svc *Service) publishAssigned(ctx context.Context, sf StudentFee) {
	svc.broadcaster.Broadcast(ctx, core.Event{
		Topic:      core.TopicFeeAssigned,
		Room:       studentRoom(sf.StudentID),
		Payload:    sf,
		OccurredAt: sf.CreatedAt,
	})
}

// Payments

// RecordPayment appends a Payment to a StudentFee and refreshes the fee's stored status, atomically.
// A failed payment is never retried.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment) (Payment, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, err
	}

	var evt PaymentRecorded
	err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		tstamp := now()

		// serializes concurrent payments on the same fee
		if err := svc.repo.LockStudentFee(ctx, np.StudentFeeID, tstamp, exec); err != nil {
			return errors.Wrap(err, "locking student fee")
		}
		sf, err := svc.repo.GetStudentFee(ctx, np.StudentFeeID, exec)
		if err != nil {
			return errors.Wrap(err, "finding student fee")
		}
		fs, err := svc.repo.GetFeeStructure(ctx, sf.FeeStructureID, exec)
		if err != nil {
			return errors.Wrap(err, "finding fee structure")
		}

		pmt, err := svc.repo.CreatePayment(ctx, Payment{
			StudentFeeID: sf.ID,
			Amount:       np.Amount,
			Method:       np.Method,
			Reference:    np.Reference,
			RecordedBy:   np.RecordedBy,
			PaidAt:       tstamp,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating payment")
		}

		pmts, err := svc.repo.QueryPayments(ctx, []string{sf.ID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying payments")
		}
		if status := DeriveStatus(SumPayments(pmts), fs.Amount); status != sf.Status {
			if err = svc.repo.UpdateStudentFeeStatus(ctx, sf.ID, status, tstamp, exec); err != nil {
				return errors.Wrap(err, "updating student fee status")
			}
			sf.Status = status
		}
		sf.UpdatedAt = tstamp

		evt = PaymentRecorded{Payment: pmt, StudentFee: sf, FeeName: fs.Name}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	svc.broadcaster.Broadcast(ctx, core.Event{
		Topic:      core.TopicPaymentRecorded,
		Room:       studentRoom(evt.StudentFee.StudentID),
		Payload:    evt,
		OccurredAt: evt.Payment.PaidAt,
	})
	return evt.Payment, nil
}

// QueryPayments returns the payments of a StudentFee, oldest first.
func (svc *Service) QueryPayments(ctx context.Context, studentFeeID string) ([]Payment, error) {
	studentFeeID = core.CleanString(studentFeeID)
	if _, err := svc.repo.GetStudentFee(ctx, studentFeeID); err != nil {
		return nil, err
	}
	pmts, err := svc.repo.QueryPayments(ctx, []string{studentFeeID})
	return pmts, errors.Wrap(err, "querying payments")
}

// Ledger

// GetStudentLedger returns the full fee history of a student with statuses derived from payments.
func (svc *Service) GetStudentLedger(ctx context.Context, studentID string) (Ledger, error) {
	studentID = core.CleanString(studentID)
	if _, err := svc.studentRepo.GetStudent(ctx, studentID); err != nil {
		return Ledger{}, err
	}

	fees, err := svc.repo.QueryStudentFees(ctx, StudentFeeFilter{StudentID: studentID})
	if err != nil {
		return Ledger{}, errors.Wrap(err, "querying student fees")
	}
	structures, payments, err := svc.loadFeeDetails(ctx, fees, svc.db)
	if err != nil {
		return Ledger{}, err
	}
	return BuildLedger(studentID, fees, structures, payments), nil
}

// Reconcile re-derives the status of every StudentFee and persists the ones that drifted.
// It returns the number of StudentFees updated.
func (svc *Service) Reconcile(ctx context.Context) (int, error) {
	var updated int
	err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		fees, err := svc.repo.QueryStudentFees(ctx, StudentFeeFilter{}, exec)
		if err != nil {
			return errors.Wrap(err, "querying student fees")
		}
		structures, payments, err := svc.loadFeeDetails(ctx, fees, exec)
		if err != nil {
			return err
		}

		paid := make(map[string][]Payment, len(fees))
		for _, p := range payments {
			paid[p.StudentFeeID] = append(paid[p.StudentFeeID], p)
		}

		tstamp := now()
		for _, sf := range fees {
			fs, ok := structures[sf.FeeStructureID]
			if !ok {
				continue
			}
			status := DeriveStatus(SumPayments(paid[sf.ID]), fs.Amount)
			if status == sf.Status {
				continue
			}
			if err = svc.repo.UpdateStudentFeeStatus(ctx, sf.ID, status, tstamp, exec); err != nil {
				return errors.Wrap(err, "updating student fee status")
			}
			svc.logger.Info(fmt.Sprintf("finance.Reconcile: student fee %s: %s -> %s", sf.ID, sf.Status, status))
			updated++
		}
		return nil
	})
	return updated, err
}

func (svc *Service) loadFeeDetails(ctx context.Context, fees []StudentFee, exec core.DBExecutor) (map[string]FeeStructure, []Payment, error) {
	if len(fees) == 0 {
		return map[string]FeeStructure{}, nil, nil
	}

	fsIDs := make([]string, 0, len(fees))
	sfIDs := make([]string, 0, len(fees))
	seen := make(map[string]bool, len(fees))
	for _, sf := range fees {
		sfIDs = append(sfIDs, sf.ID)
		if !seen[sf.FeeStructureID] {
			seen[sf.FeeStructureID] = true
			fsIDs = append(fsIDs, sf.FeeStructureID)
		}
	}

	list, err := svc.repo.GetFeeStructures(ctx, fsIDs, exec)
	if err != nil {
		return nil, nil, errors.Wrap(err, "getting fee structures")
	}
	structures := make(map[string]FeeStructure, len(list))
	for _, fs := range list {
		structures[fs.ID] = fs
	}

	payments, err := svc.repo.QueryPayments(ctx, sfIDs, exec)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying payments")
	}
	return structures, payments, nil
}

func studentRoom(studentID string) string {
	return "student:" + studentID
}
