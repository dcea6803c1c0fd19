package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the business counters of the service plus the database and
// event collectors. Every Record* method is safe on a nil or zero-value receiver.
type Metrics struct {
	Database *DatabaseMetrics
	Events   *EventMetrics

	studentsCreated    metric.Int64Counter
	studentsDeleted    metric.Int64Counter
	studentsListViewed metric.Int64Counter
	feeRecordsWritten  metric.Int64Counter
	exportsGenerated   metric.Int64Counter
}

func New(serviceName string) (*Metrics, error) {
	meter := otel.Meter(serviceName)
	m := &Metrics{}

	var err error

	m.Database, err = NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.Events, err = NewEventMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.studentsCreated, err = meter.Int64Counter(
		"student_fee_service.students.created",
		metric.WithDescription("Total number of students created"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsDeleted, err = meter.Int64Counter(
		"student_fee_service.students.deleted",
		metric.WithDescription("Total number of students deleted"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsListViewed, err = meter.Int64Counter(
		"student_fee_service.students.list_viewed",
		metric.WithDescription("Total number of times the students list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.feeRecordsWritten, err = meter.Int64Counter(
		"student_fee_service.fee_records.written",
		metric.WithDescription("Fee records created or updated, by operation and status"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	m.exportsGenerated, err = meter.Int64Counter(
		"student_fee_service.exports.generated",
		metric.WithDescription("Student exports generated, by format"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordStudentCreated(ctx context.Context) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentDeleted(ctx context.Context) {
	if m != nil && m.studentsDeleted != nil {
		m.studentsDeleted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentsListViewed(ctx context.Context) {
	if m != nil && m.studentsListViewed != nil {
		m.studentsListViewed.Add(ctx, 1)
	}
}

// RecordFeeRecordWritten counts a fee write. operation is "create" or "update".
func (m *Metrics) RecordFeeRecordWritten(ctx context.Context, operation, status string) {
	if m != nil && m.feeRecordsWritten != nil {
		m.feeRecordsWritten.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		))
	}
}

func (m *Metrics) RecordExport(ctx context.Context, format string) {
	if m != nil && m.exportsGenerated != nil {
		m.exportsGenerated.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
	}
}

// NewMock creates a no-op Metrics instance for testing.
func NewMock() *Metrics {
	return &Metrics{Database: &DatabaseMetrics{}, Events: &EventMetrics{}}
}
