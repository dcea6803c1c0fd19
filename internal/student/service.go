package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"student-fee-service/internal/events"
	"student-fee-service/internal/export"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrStudentNotFound   = errors.New("student not found")
	ErrFeeRecordNotFound = errors.New("fee record not found")
	ErrFeeRecordExists   = errors.New("fee record already exists for this month and year")
	ErrForbidden         = errors.New("fee record does not belong to this student")
	ErrInvalidInput      = errors.New("invalid input")
)

type Service interface {
	ListStudents(ctx context.Context, filter ListFilter) ([]*Student, error)
	GetStudent(ctx context.Context, id uuid.UUID) (*Student, error)
	CreateStudent(ctx context.Context, req CreateStudentRequest) (*Student, error)
	UpdateStudent(ctx context.Context, id uuid.UUID, req UpdateStudentRequest) (*Student, error)
	DeleteStudent(ctx context.Context, id uuid.UUID) error
	RecordFee(ctx context.Context, studentID uuid.UUID, req FeeRequest) (*FeeRecord, error)
	FeeHistory(ctx context.Context, studentID uuid.UUID) (*FeeHistory, error)
	ExportRows(ctx context.Context, filter ExportFilter) ([]export.Row, error)
}

type service struct {
	repo      Repository
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, publisher events.Publisher, logger *slog.Logger) Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) ListStudents(ctx context.Context, filter ListFilter) ([]*Student, error) {
	students, err := s.repo.List(ctx, filter.Normalize())
	if err != nil {
		return nil, err
	}
	for _, st := range students {
		if st.FeeRecords == nil {
			st.FeeRecords = []*FeeRecord{}
		}
	}
	return students, nil
}

func (s *service) GetStudent(ctx context.Context, id uuid.UUID) (*Student, error) {
	st, err := s.repo.GetWithFeeRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.FeeRecords == nil {
		st.FeeRecords = []*FeeRecord{}
	}
	return st, nil
}

func (s *service) CreateStudent(ctx context.Context, req CreateStudentRequest) (*Student, error) {
	if req.Name == "" || req.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: name, class and phoneNumber are required", ErrInvalidInput)
	}
	if !IsValidClass(req.Class) {
		return nil, fmt.Errorf("%w: unknown class %q", ErrInvalidInput, req.Class)
	}

	now := s.now()
	st := &Student{
		ID:            uuid.New(),
		Name:          req.Name,
		Class:         req.Class,
		PhoneNumber:   req.PhoneNumber,
		FeeStatus:     FeeStatusUnpaid,
		AdmissionDate: now,
		CreatedAt:     now,
		UpdatedAt:     now,
		FeeRecords:    []*FeeRecord{},
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.StudentCreated, StudentID: st.ID.String(), Data: st.Summary()})
	return st, nil
}

// UpdateStudent applies the non-empty fields of req. A request without any
// field returns the stored student unchanged.
func (s *service) UpdateStudent(ctx context.Context, id uuid.UUID, req UpdateStudentRequest) (*Student, error) {
	if req.Class != "" && !IsValidClass(req.Class) {
		return nil, fmt.Errorf("%w: unknown class %q", ErrInvalidInput, req.Class)
	}

	st, err := s.repo.GetWithFeeRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.FeeRecords == nil {
		st.FeeRecords = []*FeeRecord{}
	}

	var columns []string
	if req.Name != "" {
		st.Name = req.Name
		columns = append(columns, "name")
	}
	if req.Class != "" {
		st.Class = req.Class
		columns = append(columns, "class")
	}
	if req.PhoneNumber != "" {
		st.PhoneNumber = req.PhoneNumber
		columns = append(columns, "phone_number")
	}
	if len(columns) == 0 {
		return st, nil
	}

	if err := s.repo.Update(ctx, st, columns...); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:      events.StudentUpdated,
		StudentID: st.ID.String(),
		Data:      map[string]interface{}{"columns": columns},
	})
	return st, nil
}

// DeleteStudent removes the student and every fee record of it atomically.
func (s *service) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	var removed int
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetByID(ctx, id); err != nil {
			return err
		}
		n, err := repo.DeleteFeeRecords(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Type:      events.StudentDeleted,
		StudentID: id.String(),
		Data:      map[string]int{"feeRecordsDeleted": removed},
	})
	return nil
}

// RecordFee updates the record named by req.FeeID or creates one for the
// requested month and year. The student's fee status is recomputed in the
// same transaction.
func (s *service) RecordFee(ctx context.Context, studentID uuid.UUID, req FeeRequest) (*FeeRecord, error) {
	if !req.FeeStatus.Valid() {
		return nil, fmt.Errorf("%w: feeStatus must be paid or unpaid", ErrInvalidInput)
	}

	var (
		feeID  uuid.UUID
		update = req.FeeID != ""
	)
	if update {
		id, err := uuid.Parse(req.FeeID)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed feeId", ErrInvalidInput)
		}
		feeID = id
	} else if err := validateNewFee(req); err != nil {
		return nil, err
	}

	now := s.now()
	var record *FeeRecord
	var st *Student

	err := s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		if update {
			record, err = repo.GetFeeRecord(ctx, feeID)
			if err != nil {
				return err
			}
			if record.StudentID != studentID {
				return ErrForbidden
			}
			if st, err = repo.GetByID(ctx, studentID); err != nil {
				return err
			}

			record.Status = req.FeeStatus
			record.PaidAt = paidAt(req.FeeStatus, now)
			if err := repo.UpdateFeeRecord(ctx, record); err != nil {
				return err
			}
		} else {
			if st, err = repo.GetByID(ctx, studentID); err != nil {
				return err
			}

			exists, err := repo.FeeRecordExists(ctx, studentID, req.Month, req.Year)
			if err != nil {
				return err
			}
			if exists {
				return ErrFeeRecordExists
			}

			record = &FeeRecord{
				ID:        uuid.New(),
				StudentID: studentID,
				Month:     req.Month,
				Year:      req.Year,
				Amount:    *req.Amount,
				Status:    req.FeeStatus,
				PaidAt:    paidAt(req.FeeStatus, now),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repo.CreateFeeRecord(ctx, record); err != nil {
				return err
			}
		}

		records, err := repo.ListFeeRecords(ctx, studentID)
		if err != nil {
			return err
		}
		st.FeeStatus = DeriveFeeStatus(records)
		return repo.SetFeeStatus(ctx, studentID, st.FeeStatus)
	})
	if err != nil {
		return nil, err
	}

	record.Student = st.Summary()

	eventType := events.FeeRecorded
	if update {
		eventType = events.FeeUpdated
	}
	s.publish(ctx, events.Event{
		Type:        eventType,
		StudentID:   studentID.String(),
		FeeRecordID: record.ID.String(),
		Data: map[string]interface{}{
			"month":            record.Month,
			"year":             record.Year,
			"amount":           record.Amount,
			"status":           record.Status,
			"studentFeeStatus": st.FeeStatus,
		},
	})
	return record, nil
}

func (s *service) FeeHistory(ctx context.Context, studentID uuid.UUID) (*FeeHistory, error) {
	st, err := s.repo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListFeeRecords(ctx, studentID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(records)

	return &FeeHistory{
		Student:    st.Summary(),
		FeeRecords: records,
	}, nil
}

// ExportRows lists the filtered students with the sum of their paid fees.
// With a month and year in the filter only that period is summed.
func (s *service) ExportRows(ctx context.Context, filter ExportFilter) ([]export.Row, error) {
	students, err := s.ListStudents(ctx, filter.ListFilter())
	if err != nil {
		return nil, err
	}

	rows := make([]export.Row, 0, len(students))
	for _, st := range students {
		rows = append(rows, export.Row{
			StudentID:     st.ID.String(),
			Name:          st.Name,
			Class:         st.Class,
			PhoneNumber:   st.PhoneNumber,
			FeeStatus:     string(st.FeeStatus),
			TotalFeesPaid: TotalPaid(st.FeeRecords),
			AdmissionDate: st.AdmissionDate,
			LastUpdated:   st.UpdatedAt,
		})
	}
	return rows, nil
}

func (s *service) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "type", event.Type, "student_id", event.StudentID, "error", err)
	}
}

func validateNewFee(req FeeRequest) error {
	switch {
	case req.Month == "" || req.Year == 0 || req.Amount == nil:
		return fmt.Errorf("%w: month, year, amount and feeStatus are required", ErrInvalidInput)
	case MonthNumber(req.Month) == 0:
		return fmt.Errorf("%w: unknown month %q", ErrInvalidInput, req.Month)
	case req.Year < 0:
		return fmt.Errorf("%w: year must be positive", ErrInvalidInput)
	case !req.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return nil
}

func paidAt(status FeeStatus, now time.Time) *time.Time {
	if status != FeeStatusPaid {
		return nil
	}
	return &now
}

// DeriveFeeStatus is paid when there is at least one record and none of them
// is unpaid.
func DeriveFeeStatus(records []*FeeRecord) FeeStatus {
	if len(records) == 0 {
		return FeeStatusUnpaid
	}
	for _, r := range records {
		if r.Status != FeeStatusPaid {
			return FeeStatusUnpaid
		}
	}
	return FeeStatusPaid
}

// TotalPaid sums the amounts of the paid records.
func TotalPaid(records []*FeeRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Status == FeeStatusPaid {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// SortNewestFirst orders records by year, then calendar month, newest first.
func SortNewestFirst(records []*FeeRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Year != records[j].Year {
			return records[i].Year > records[j].Year
		}
		return MonthNumber(records[i].Month) > MonthNumber(records[j].Month)
	})
}
