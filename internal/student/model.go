package student

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

func init() {
	// Amounts travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type FeeStatus string

const (
	FeeStatusPaid   FeeStatus = "paid"
	FeeStatusUnpaid FeeStatus = "unpaid"
)

func (s FeeStatus) Valid() bool {
	return s == FeeStatusPaid || s == FeeStatusUnpaid
}

// Classes are the grade levels a student can be enrolled in.
var Classes = []string{
	"Play Group",
	"Nursery",
	"Prep",
	"Class One",
	"Class Two",
	"Class Three",
	"Class Four",
	"Class Five",
	"Class Six",
	"Class Seven",
	"Class Eight",
	"Class Nine",
	"Class Ten",
}

var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

func IsValidClass(class string) bool {
	for _, c := range Classes {
		if c == class {
			return true
		}
	}
	return false
}

// MonthNumber returns 1..12 for a canonical month name and 0 otherwise.
func MonthNumber(month string) int {
	for i, m := range Months {
		if m == month {
			return i + 1
		}
	}
	return 0
}

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	Name          string       `bun:"name,notnull" json:"name"`
	Class         string       `bun:"class,notnull" json:"class"`
	PhoneNumber   string       `bun:"phone_number,notnull" json:"phoneNumber"`
	FeeStatus     FeeStatus    `bun:"fee_status,notnull,default:'unpaid'" json:"feeStatus"`
	AdmissionDate time.Time    `bun:"admission_date,nullzero,notnull,default:current_timestamp" json:"admissionDate"`
	CreatedAt     time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time    `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
	FeeRecords    []*FeeRecord `bun:"rel:has-many,join:id=student_id" json:"feeRecords"`
}

type FeeRecord struct {
	bun.BaseModel `bun:"table:fee_records,alias:fr"`

	ID        uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	StudentID uuid.UUID       `bun:"student_id,type:uuid,notnull" json:"studentId"`
	Month     string          `bun:"month,notnull" json:"month"`
	Year      int             `bun:"year,notnull" json:"year"`
	Amount    decimal.Decimal `bun:"amount,type:numeric(12,2),notnull" json:"amount"`
	Status    FeeStatus       `bun:"status,notnull,default:'unpaid'" json:"status"`
	PaidAt    *time.Time      `bun:"paid_at,nullzero" json:"paidAt"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`

	Student *Summary `bun:"-" json:"student,omitempty"`
}

var _ bun.BeforeCreateTableHook = (*FeeRecord)(nil)

func (*FeeRecord) BeforeCreateTable(ctx context.Context, query *bun.CreateTableQuery) error {
	query.ForeignKey(`("student_id") REFERENCES "students" ("id") ON DELETE CASCADE`)
	return nil
}

var _ bun.AfterCreateTableHook = (*FeeRecord)(nil)

// AfterCreateTable enforces one fee record per student and billing period.
func (*FeeRecord) AfterCreateTable(ctx context.Context, query *bun.CreateTableQuery) error {
	_, err := query.DB().NewCreateIndex().
		Model((*FeeRecord)(nil)).
		Unique().
		IfNotExists().
		Index("fee_records_student_period_key").
		Column("student_id", "month", "year").
		Exec(ctx)
	return err
}

// Summary is the short form of a student embedded in fee responses.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Class     string    `json:"class"`
	FeeStatus FeeStatus `json:"feeStatus"`
}

func (s *Student) Summary() *Summary {
	return &Summary{
		ID:        s.ID,
		Name:      s.Name,
		Class:     s.Class,
		FeeStatus: s.FeeStatus,
	}
}

// FeeHistory is a student's full payment history, newest period first.
type FeeHistory struct {
	Student    *Summary     `json:"student"`
	FeeRecords []*FeeRecord `json:"feeRecords"`
}

// Models lists the tables in creation order.
func Models() []interface{} {
	return []interface{}{
		(*Student)(nil),
		(*FeeRecord)(nil),
	}
}

// CreateStudentRequest is the body of POST /students.
type CreateStudentRequest struct {
	Name        string `json:"name" validate:"required"`
	Class       string `json:"class" validate:"required,schoolclass"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

// UpdateStudentRequest is the body of PUT /students/{id}. Empty fields are
// left untouched.
type UpdateStudentRequest struct {
	Name        string `json:"name"`
	Class       string `json:"class" validate:"omitempty,schoolclass"`
	PhoneNumber string `json:"phoneNumber"`
}

// FeeRequest is the body of POST /students/{id}/fee. A FeeID selects the
// update path, otherwise a new record is created.
type FeeRequest struct {
	FeeID     string           `json:"feeId,omitempty"`
	Month     string           `json:"month"`
	Year      int              `json:"year"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	FeeStatus FeeStatus        `json:"feeStatus"`
}
