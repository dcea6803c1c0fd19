package student

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"student-fee-service/internal/events"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository. RunInTx restores the previous state
// when fn fails.
type memRepo struct {
	mu       sync.Mutex
	order    []uuid.UUID
	students map[uuid.UUID]*Student
	fees     map[uuid.UUID]*FeeRecord

	failDeleteStudent error
}

func newMemRepo() *memRepo {
	return &memRepo{
		students: map[uuid.UUID]*Student{},
		fees:     map[uuid.UUID]*FeeRecord{},
	}
}

func (m *memRepo) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	m.mu.Lock()
	order := append([]uuid.UUID(nil), m.order...)
	students := make(map[uuid.UUID]*Student, len(m.students))
	for k, v := range m.students {
		cp := *v
		students[k] = &cp
	}
	fees := make(map[uuid.UUID]*FeeRecord, len(m.fees))
	for k, v := range m.fees {
		cp := *v
		fees[k] = &cp
	}
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.order, m.students, m.fees = order, students, fees
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memRepo) Create(_ context.Context, st *Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *st
	cp.FeeRecords = nil
	m.students[st.ID] = &cp
	m.order = append(m.order, st.ID)
	return nil
}

func (m *memRepo) recordsOf(id uuid.UUID, month string, year int) []*FeeRecord {
	out := []*FeeRecord{}
	for _, f := range m.fees {
		if f.StudentID != id {
			continue
		}
		if month != "" && (f.Month != month || f.Year != year) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memRepo) List(_ context.Context, filter ListFilter) ([]*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Student, 0)
	for _, id := range m.order {
		st, ok := m.students[id]
		if !ok {
			continue
		}
		if filter.Class != "" && st.Class != filter.Class {
			continue
		}
		if filter.FeeStatus != "" && st.FeeStatus != filter.FeeStatus {
			continue
		}
		cp := *st
		if filter.HasPeriod() {
			cp.FeeRecords = m.recordsOf(id, filter.Month, filter.Year)
		} else {
			cp.FeeRecords = m.recordsOf(id, "", 0)
		}
		out = append(out, &cp)
	}

	key := map[string]func(*Student) string{
		"name":      func(s *Student) string { return s.Name },
		"class":     func(s *Student) string { return s.Class },
		"feeStatus": func(s *Student) string { return string(s.FeeStatus) },
	}[filter.SortBy]
	if key != nil {
		sort.SliceStable(out, func(i, j int) bool {
			if filter.SortOrder == "desc" {
				return key(out[i]) > key(out[j])
			}
			return key(out[i]) < key(out[j])
		})
	}
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[id]
	if !ok {
		return nil, ErrStudentNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *memRepo) GetWithFeeRecords(ctx context.Context, id uuid.UUID) (*Student, error) {
	st, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st.FeeRecords = m.recordsOf(id, "", 0)
	return st, nil
}

func (m *memRepo) Update(_ context.Context, st *Student, _ ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[st.ID]; !ok {
		return ErrStudentNotFound
	}
	st.UpdatedAt = time.Now()
	cp := *st
	cp.FeeRecords = nil
	m.students[st.ID] = &cp
	return nil
}

func (m *memRepo) SetFeeStatus(_ context.Context, id uuid.UUID, status FeeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[id]
	if !ok {
		return ErrStudentNotFound
	}
	st.FeeStatus = status
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeleteStudent != nil {
		return m.failDeleteStudent
	}
	if _, ok := m.students[id]; !ok {
		return ErrStudentNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *memRepo) CreateFeeRecord(_ context.Context, record *FeeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.fees {
		if f.StudentID == record.StudentID && f.Month == record.Month && f.Year == record.Year {
			return ErrFeeRecordExists
		}
	}
	cp := *record
	m.fees[record.ID] = &cp
	return nil
}

func (m *memRepo) GetFeeRecord(_ context.Context, id uuid.UUID) (*FeeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fees[id]
	if !ok {
		return nil, ErrFeeRecordNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memRepo) UpdateFeeRecord(_ context.Context, record *FeeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fees[record.ID]; !ok {
		return ErrFeeRecordNotFound
	}
	cp := *record
	cp.Student = nil
	m.fees[record.ID] = &cp
	return nil
}

func (m *memRepo) ListFeeRecords(_ context.Context, studentID uuid.UUID) ([]*FeeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordsOf(studentID, "", 0), nil
}

func (m *memRepo) FeeRecordExists(_ context.Context, studentID uuid.UUID, month string, year int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recordsOf(studentID, month, year)) > 0, nil
}

func (m *memRepo) DeleteFeeRecords(_ context.Context, studentID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, f := range m.fees {
		if f.StudentID == studentID {
			delete(m.fees, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) feeCount(studentID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recordsOf(studentID, "", 0))
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errBoom = errors.New("boom")
