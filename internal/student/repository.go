package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"student-fee-service/internal/metrics"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Repository interface {
	// RunInTx calls fn with a Repository bound to a single transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

	Create(ctx context.Context, student *Student) error
	List(ctx context.Context, filter ListFilter) ([]*Student, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Student, error)
	GetWithFeeRecords(ctx context.Context, id uuid.UUID) (*Student, error)
	Update(ctx context.Context, student *Student, columns ...string) error
	SetFeeStatus(ctx context.Context, id uuid.UUID, status FeeStatus) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateFeeRecord(ctx context.Context, record *FeeRecord) error
	GetFeeRecord(ctx context.Context, id uuid.UUID) (*FeeRecord, error)
	UpdateFeeRecord(ctx context.Context, record *FeeRecord) error
	ListFeeRecords(ctx context.Context, studentID uuid.UUID) ([]*FeeRecord, error)
	FeeRecordExists(ctx context.Context, studentID uuid.UUID, month string, year int) (bool, error)
	DeleteFeeRecords(ctx context.Context, studentID uuid.UUID) (int, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) record(ctx context.Context, operation, table string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	r.metrics.Database.RecordQuery(ctx, operation, table, time.Since(start), err)
}

func (r *repository) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &repository{db: tx, metrics: r.metrics})
	})
}

func (r *repository) Create(ctx context.Context, student *Student) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(student).Returning("*").Exec(ctx)
	r.record(ctx, "insert", "students", start, err)
	return err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]*Student, error) {
	start := time.Now()
	students := make([]*Student, 0)

	q := r.db.NewSelect().
		Model(&students).
		Relation("FeeRecords", func(q *bun.SelectQuery) *bun.SelectQuery {
			if filter.HasPeriod() {
				q = q.Where("fr.month = ?", filter.Month).Where("fr.year = ?", filter.Year)
			}
			return q.OrderExpr("fr.year ASC, fr.created_at ASC")
		})

	if filter.Class != "" {
		q = q.Where("s.class = ?", filter.Class)
	}
	if filter.FeeStatus != "" {
		q = q.Where("s.fee_status = ?", filter.FeeStatus)
	}

	err := q.OrderExpr(filter.orderExpr()).Scan(ctx)
	r.record(ctx, "select", "students", start, err)
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where("s.id = ?", id).Scan(ctx)
	r.record(ctx, "select", "students", start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) GetWithFeeRecords(ctx context.Context, id uuid.UUID) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().
		Model(student).
		Relation("FeeRecords", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("fr.year ASC, fr.created_at ASC")
		}).
		Where("s.id = ?", id).
		Scan(ctx)
	r.record(ctx, "select", "students", start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

// Update writes the given columns (all columns when none are given) and
// bumps updated_at.
func (r *repository) Update(ctx context.Context, student *Student, columns ...string) error {
	start := time.Now()
	student.UpdatedAt = time.Now()

	q := r.db.NewUpdate().Model(student).WherePK().Returning("*")
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}

	result, err := q.Exec(ctx)
	r.record(ctx, "update", "students", start, err)
	if err != nil {
		return err
	}
	return requireRow(result, ErrStudentNotFound)
}

func (r *repository) SetFeeStatus(ctx context.Context, id uuid.UUID, status FeeStatus) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model((*Student)(nil)).
		Set("fee_status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	r.record(ctx, "update", "students", start, err)
	if err != nil {
		return err
	}
	return requireRow(result, ErrStudentNotFound)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	student := &Student{ID: id}
	result, err := r.db.NewDelete().Model(student).WherePK().Exec(ctx)
	r.record(ctx, "delete", "students", start, err)
	if err != nil {
		return err
	}
	return requireRow(result, ErrStudentNotFound)
}

func (r *repository) CreateFeeRecord(ctx context.Context, record *FeeRecord) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(record).Returning("*").Exec(ctx)
	r.record(ctx, "insert", "fee_records", start, err)
	if isUniqueViolation(err) {
		return ErrFeeRecordExists
	}
	return err
}

func (r *repository) GetFeeRecord(ctx context.Context, id uuid.UUID) (*FeeRecord, error) {
	start := time.Now()
	record := new(FeeRecord)
	err := r.db.NewSelect().Model(record).Where("fr.id = ?", id).Scan(ctx)
	r.record(ctx, "select", "fee_records", start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFeeRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

func (r *repository) UpdateFeeRecord(ctx context.Context, record *FeeRecord) error {
	start := time.Now()
	record.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().
		Model(record).
		Column("status", "paid_at", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	r.record(ctx, "update", "fee_records", start, err)
	if err != nil {
		return err
	}
	return requireRow(result, ErrFeeRecordNotFound)
}

func (r *repository) ListFeeRecords(ctx context.Context, studentID uuid.UUID) ([]*FeeRecord, error) {
	start := time.Now()
	records := make([]*FeeRecord, 0)
	err := r.db.NewSelect().
		Model(&records).
		Where("fr.student_id = ?", studentID).
		OrderExpr("fr.year DESC, fr.created_at DESC").
		Scan(ctx)
	r.record(ctx, "select", "fee_records", start, err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) FeeRecordExists(ctx context.Context, studentID uuid.UUID, month string, year int) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*FeeRecord)(nil)).
		Where("fr.student_id = ?", studentID).
		Where("fr.month = ?", month).
		Where("fr.year = ?", year).
		Exists(ctx)
	r.record(ctx, "select", "fee_records", start, err)
	return exists, err
}

func (r *repository) DeleteFeeRecords(ctx context.Context, studentID uuid.UUID) (int, error) {
	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*FeeRecord)(nil)).
		Where("student_id = ?", studentID).
		Exec(ctx)
	r.record(ctx, "delete", "fee_records", start, err)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
