package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"staffattendance/internal/attendance"
	"staffattendance/internal/auth"
	"staffattendance/internal/clock"
	"staffattendance/internal/metrics"
	"staffattendance/internal/queue"
	"staffattendance/internal/settings"
	"staffattendance/internal/users"
)

const (
	testKey    = "handler-test-key"
	testIssuer = "handler-test"
)

var wib = time.FixedZone("WIB", 7*60*60)

type fakeEngine struct {
	checkIn   func(userID string, loc attendance.Location, ip string) (attendance.Outcome, error)
	checkOut  func(userID string, loc attendance.Location) (attendance.Outcome, error)
	distance  func(loc attendance.Location) (attendance.DistanceCheck, error)
	today     *attendance.Record
	history   func(userID string, page, limit int) (attendance.Page, error)
	update    func(id string, u attendance.RecordUpdate) (attendance.Record, error)
	lastIP    string
	lastUser  string
	lastPatch attendance.RecordUpdate
}

func (f *fakeEngine) CheckIn(_ context.Context, userID string, loc attendance.Location, ip string) (attendance.Outcome, error) {
	f.lastIP, f.lastUser = ip, userID
	return f.checkIn(userID, loc, ip)
}

func (f *fakeEngine) CheckOut(_ context.Context, userID string, loc attendance.Location) (attendance.Outcome, error) {
	f.lastUser = userID
	return f.checkOut(userID, loc)
}

func (f *fakeEngine) CheckDistance(_ context.Context, loc attendance.Location) (attendance.DistanceCheck, error) {
	return f.distance(loc)
}

func (f *fakeEngine) TodayStatus(_ context.Context, userID string) (*attendance.Record, error) {
	f.lastUser = userID
	return f.today, nil
}

func (f *fakeEngine) History(_ context.Context, userID string, page, limit int) (attendance.Page, error) {
	f.lastUser = userID
	return f.history(userID, page, limit)
}

func (f *fakeEngine) UpdateRecord(_ context.Context, id string, u attendance.RecordUpdate) (attendance.Record, error) {
	f.lastPatch = u
	return f.update(id, u)
}

type fakeReporting struct {
	records   []attendance.Record
	err       error
	lastYear  int
	lastMonth int
	lastUser  string
}

func (f *fakeReporting) Daily(_ context.Context, date string) (attendance.DailySnapshot, error) {
	if f.err != nil {
		return attendance.DailySnapshot{}, f.err
	}
	return attendance.DailySnapshot{Date: date, Records: f.records}, nil
}

func (f *fakeReporting) Monthly(_ context.Context, year, month int, userID string) ([]attendance.Record, error) {
	f.lastYear, f.lastMonth, f.lastUser = year, month, userID
	return f.records, f.err
}

func (f *fakeReporting) Dashboard(context.Context) (attendance.Dashboard, error) {
	return attendance.Dashboard{Stats: attendance.DashboardStats{TotalTeachers: 3}}, f.err
}

func (f *fakeReporting) WeeklyTrend(context.Context) ([]attendance.TrendPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	points := make([]attendance.TrendPoint, 7)
	for i := range points {
		points[i] = attendance.TrendPoint{Date: time.Date(2024, 2, 27+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), Absent: 3}
	}
	return points, nil
}

type fakeSettings struct {
	current settings.Settings
	saved   *settings.Settings
}

func (f *fakeSettings) Current(context.Context) (settings.Settings, error) {
	return f.current, nil
}

func (f *fakeSettings) Save(_ context.Context, s settings.Settings) (settings.Settings, error) {
	if err := s.Validate(); err != nil {
		return settings.Settings{}, err
	}
	f.saved = &s
	return s, nil
}

type fakeAccounts struct {
	byID    map[string]users.User
	deleted []string
}

func (f *fakeAccounts) List(_ context.Context, role users.Role) ([]users.User, error) {
	var out []users.User
	for _, u := range f.byID {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeAccounts) Get(_ context.Context, id string) (users.User, error) {
	u, found := f.byID[id]
	if !found {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeAccounts) Create(_ context.Context, in users.CreateInput) (users.User, error) {
	for _, u := range f.byID {
		if u.Email == in.Email {
			return users.User{}, users.ErrDuplicate
		}
	}
	u := users.User{ID: "new", Email: in.Email, FullName: in.FullName, Role: in.Role}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeAccounts) Update(_ context.Context, id string, in users.UpdateInput) (users.User, error) {
	u, found := f.byID[id]
	if !found {
		return users.User{}, users.ErrNotFound
	}
	u.FullName = in.FullName
	f.byID[id] = u
	return u, nil
}

func (f *fakeAccounts) Delete(_ context.Context, id string) error {
	if _, found := f.byID[id]; !found {
		return users.ErrNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeSessions struct{}

func (fakeSessions) Login(_ context.Context, email, password string) (auth.Session, error) {
	if email != "siti@school.id" || password != "correct-horse" {
		return auth.Session{}, users.ErrInvalidCredentials
	}
	return auth.Session{Tokens: auth.TokenPair{AccessToken: "a", RefreshToken: "r"}}, nil
}

func (fakeSessions) Refresh(_ context.Context, token string) (auth.Session, error) {
	if token != "r" {
		return auth.Session{}, auth.ErrTokenRevoked
	}
	return auth.Session{Tokens: auth.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}, nil
}

func (fakeSessions) Logout(context.Context, string) error { return nil }

type fakeEvents struct {
	events []attendance.Event
}

func (f *fakeEvents) ListEvents(_ context.Context, userID string, limit, offset int) ([]attendance.Event, error) {
	return f.events, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (q *recordingQueue) Publish(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) Consume(ctx context.Context) (<-chan queue.Message, error) {
	ch := make(chan queue.Message)
	close(ch)
	return ch, nil
}

type env struct {
	router   *gin.Engine
	engine   *fakeEngine
	reports  *fakeReporting
	settings *fakeSettings
	accounts *fakeAccounts
	queue    *recordingQueue
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	health   map[string]bool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := &env{
		engine:   &fakeEngine{},
		reports:  &fakeReporting{},
		settings: &fakeSettings{},
		accounts: &fakeAccounts{byID: map[string]users.User{
			"t-1": {ID: "t-1", Email: "siti@school.id", FullName: "Siti Rahma", Role: users.RoleTeacher},
			"a-1": {ID: "a-1", Email: "admin@school.id", FullName: "Admin", Role: users.RoleAdmin},
		}},
		queue:    &recordingQueue{},
		registry: prometheus.NewRegistry(),
		health:   map[string]bool{"db": true, "redis": true},
	}
	e.metrics = metrics.New(e.registry)
	h := New(Options{
		Engine:    e.engine,
		Reporting: e.reports,
		Settings:  e.settings,
		Accounts:  e.accounts,
		Sessions:  fakeSessions{},
		Events:    &fakeEvents{},
		Queue:     e.queue,
		Metrics:   e.metrics,
		Clock:     clock.NewFixed(time.Date(2024, 3, 4, 7, 30, 0, 0, wib)),
		Location:  wib,
		Health: map[string]HealthCheck{
			"db":    func(context.Context) bool { return e.health["db"] },
			"redis": func(context.Context) bool { return e.health["redis"] },
		},
	})
	e.router = NewRouter(h, RouterConfig{SigningKey: testKey, Issuer: testIssuer})
	return e
}

func token(t *testing.T, userID string, role users.Role) string {
	t.Helper()
	pair, err := auth.Issue(userID, string(role), "Test", testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	return pair.AccessToken
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (e *env) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, r)
	req.RemoteAddr = "192.0.2.10:5000"
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func ptr[T any](v T) *T { return &v }

// distanceSamples is how many check-in distances the histogram has observed.
func (e *env) distanceSamples(t *testing.T) uint64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "attendance_checkin_distance_meters" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}

var schoolGate = map[string]any{"latitude": -6.2, "longitude": 106.816666, "accuracy": 12.0}
