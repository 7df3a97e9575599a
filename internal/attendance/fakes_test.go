package attendance

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"staffattendance/internal/settings"
)

var wib = time.FixedZone("WIB", 7*60*60)

func at(day, hour, minute, second int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, second, 0, wib)
}

type memStore struct {
	mu      sync.Mutex
	records map[string]*Record
	seq     int

	finds int
	// hidden records are invisible to FindByUserAndDate but still trip the
	// uniqueness check, like a concurrent insert that committed in between.
	hidden  map[string]bool
	findErr error
	listErr error
	// closeBehind marks the record closed just before MarkCheckOut runs.
	closeBehind bool
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*Record{}, hidden: map[string]bool{}}
}

func (m *memStore) add(rec Record) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if rec.ID == "" {
		rec.ID = "rec-" + strconv.Itoa(m.seq)
	}
	m.records[rec.ID] = &rec
	return rec
}

func (m *memStore) FindByUserAndDate(_ context.Context, userID, date string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.findErr != nil {
		return nil, m.findErr
	}
	for id, r := range m.records {
		if r.UserID == userID && r.Date == date && !m.hidden[id] {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Insert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	for _, r := range m.records {
		if r.UserID == rec.UserID && r.Date == rec.Date {
			m.mu.Unlock()
			return Record{}, ErrDuplicate
		}
	}
	m.mu.Unlock()
	return m.add(rec), nil
}

func (m *memStore) MarkCheckOut(_ context.Context, id string, when time.Time, lat, lng float64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotOpen
	}
	if m.closeBehind {
		r.CheckOut = &when
	}
	if r.CheckOut != nil {
		return Record{}, ErrNotOpen
	}
	r.CheckOut = &when
	r.CheckOutLat = &lat
	r.CheckOutLng = &lng
	return *r, nil
}

func (m *memStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return *r, nil
}

func (m *memStore) Update(_ context.Context, id string, u RecordUpdate) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	if u.CheckIn != nil {
		r.CheckIn = u.CheckIn
	}
	if u.CheckOut != nil {
		r.CheckOut = u.CheckOut
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	return *r, nil
}

func (m *memStore) filter(keep func(Record) bool) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []Record{}
	for _, r := range m.records {
		if keep(*r) {
			res = append(res, *r)
		}
	}
	return res
}

func (m *memStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]Record, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	all := m.filter(func(r Record) bool { return r.UserID == userID })
	sort.Slice(all, func(i, j int) bool { return all[i].Date > all[j].Date })
	total := len(all)
	if offset >= total {
		return []Record{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (m *memStore) ListByDate(_ context.Context, date string) ([]Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.filter(func(r Record) bool { return r.Date == date }), nil
}

func (m *memStore) ListRange(_ context.Context, from, to, userID string) ([]Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	res := m.filter(func(r Record) bool {
		return r.Date >= from && r.Date <= to && (userID == "" || r.UserID == userID)
	})
	sort.Slice(res, func(i, j int) bool { return res[i].Date < res[j].Date })
	return res, nil
}

type staticSettings struct {
	s   settings.Settings
	err error
}

func (p staticSettings) Current(context.Context) (settings.Settings, error) {
	return p.s, p.err
}

type fixedHeadcount struct {
	n   int
	err error
}

func (h fixedHeadcount) CountTeachers(context.Context) (int, error) {
	return h.n, h.err
}

var errStorage = errors.New("connection reset")
