package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staffattendance/internal/clock"
	"staffattendance/internal/settings"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Store is the persistence the engine reads and writes through. Dates are
// calendar dates in clock.DateLayout.
type Store interface {
	// FindByUserAndDate returns nil, nil when the user has no record that day.
	FindByUserAndDate(ctx context.Context, userID, date string) (*Record, error)
	// Insert returns ErrDuplicate when (user, date) already exists.
	Insert(ctx context.Context, rec Record) (Record, error)
	// MarkCheckOut closes an open record and returns ErrNotOpen when the
	// record already has a check-out.
	MarkCheckOut(ctx context.Context, id string, at time.Time, lat, lng float64) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, id string, u RecordUpdate) (Record, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, int, error)
	ListByDate(ctx context.Context, date string) ([]Record, error)
	// ListRange returns records with from <= date <= to, date ascending.
	// An empty userID matches every user.
	ListRange(ctx context.Context, from, to, userID string) ([]Record, error)
}

// SettingsProvider returns the school settings in force right now.
type SettingsProvider interface {
	Current(ctx context.Context) (settings.Settings, error)
}

// Outcome is a successful check-in or check-out.
type Outcome struct {
	Record Record `json:"record"`
	// Distance is nil when geofencing is disabled.
	Distance *int   `json:"distance,omitempty"`
	Message  string `json:"message"`
}

// DistanceCheck is the result of a distance check.
type DistanceCheck struct {
	Distance        *int   `json:"distance,omitempty"`
	GeofenceEnabled bool   `json:"geofence_enabled"`
	Message         string `json:"message"`
}

// Service enforces the per-day attendance rules. It holds no state between
// calls: every operation re-reads settings and the user's record.
type Service struct {
	store    Store
	settings SettingsProvider
	clock    clock.Clock
}

// NewService wires the engine to its collaborators.
func NewService(store Store, provider SettingsProvider, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.NewSystem(time.UTC)
	}
	return &Service{store: store, settings: provider, clock: clk}
}

// CheckIn opens today's record for userID.
func (s *Service) CheckIn(ctx context.Context, userID string, loc Location, originIP string) (Outcome, error) {
	if userID == "" {
		return Outcome{}, ErrUnauthenticated
	}
	if err := ValidateLocation(loc); err != nil {
		return Outcome{}, err
	}

	now := s.clock.Now()
	today := clock.Date(now)

	existing, err := s.store.FindByUserAndDate(ctx, userID, today)
	if err != nil {
		return Outcome{}, persistence("load today's attendance", err)
	}
	if existing != nil {
		return Outcome{}, duplicate(msgAlreadyCheckedIn)
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return Outcome{}, persistence("load school settings", err)
	}
	distance, err := EvaluateGeofence(loc, cfg)
	if err != nil {
		return Outcome{}, err
	}

	hour, minute, err := cfg.StartThreshold()
	if err != nil {
		return Outcome{}, persistence("read start time", err)
	}
	status := StatusPresent
	if now.After(clock.AtTimeOfDay(now, hour, minute)) {
		status = StatusLate
	}

	rec := Record{
		UserID:     userID,
		Date:       today,
		CheckIn:    &now,
		Status:     status,
		IPAddress:  ptr(originAddress(originIP)),
		CheckInLat: ptr(loc.Latitude),
		CheckInLng: ptr(loc.Longitude),
	}
	if cfg.GeofenceEnabled() {
		rec.DistanceMeters = ptr(distance)
		rec.LocationAccuracy = ptr(loc.Accuracy)
	}

	created, err := s.store.Insert(ctx, rec)
	if errors.Is(err, ErrDuplicate) {
		return Outcome{}, duplicate(msgAlreadyCheckedIn)
	}
	if err != nil {
		return Outcome{}, persistence("check in", err)
	}

	out := Outcome{Record: created, Message: "checked in: on time"}
	if status == StatusLate {
		out.Message = "checked in: late"
	}
	if cfg.GeofenceEnabled() {
		out.Distance = ptr(distance)
		out.Message = fmt.Sprintf("%s (%dm from school)", out.Message, distance)
	}
	return out, nil
}

// CheckOut closes today's record for userID.
func (s *Service) CheckOut(ctx context.Context, userID string, loc Location) (Outcome, error) {
	if userID == "" {
		return Outcome{}, ErrUnauthenticated
	}
	if err := ValidateLocation(loc); err != nil {
		return Outcome{}, err
	}

	now := s.clock.Now()
	existing, err := s.store.FindByUserAndDate(ctx, userID, clock.Date(now))
	if err != nil {
		return Outcome{}, persistence("load today's attendance", err)
	}
	if existing == nil || existing.CheckIn == nil {
		return Outcome{}, duplicate(msgNoCheckIn)
	}
	if existing.CheckOut != nil {
		return Outcome{}, duplicate(msgAlreadyCheckedOut)
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return Outcome{}, persistence("load school settings", err)
	}
	distance, err := EvaluateGeofence(loc, cfg)
	if err != nil {
		return Outcome{}, err
	}

	hour, minute, gated, err := cfg.EndThreshold()
	if err != nil {
		return Outcome{}, persistence("read end time", err)
	}
	if gated && now.Before(clock.AtTimeOfDay(now, hour, minute)) {
		return Outcome{}, &Error{
			Kind:    KindTemporal,
			Message: fmt.Sprintf("too early to check out; check-out opens at %02d:%02d", hour, minute),
		}
	}

	updated, err := s.store.MarkCheckOut(ctx, existing.ID, now, loc.Latitude, loc.Longitude)
	if errors.Is(err, ErrNotOpen) {
		return Outcome{}, duplicate(msgAlreadyCheckedOut)
	}
	if err != nil {
		return Outcome{}, persistence("check out", err)
	}
	out := Outcome{Record: updated, Message: "checked out"}
	if cfg.GeofenceEnabled() {
		out.Distance = ptr(distance)
		out.Message = fmt.Sprintf("checked out (%dm from school)", distance)
	}
	return out, nil
}

// CheckDistance evaluates loc against the geofence without writing anything.
func (s *Service) CheckDistance(ctx context.Context, loc Location) (DistanceCheck, error) {
	if err := ValidateLocation(loc); err != nil {
		return DistanceCheck{}, err
	}
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return DistanceCheck{}, persistence("load school settings", err)
	}
	distance, err := EvaluateGeofence(loc, cfg)
	if err != nil {
		return DistanceCheck{}, err
	}
	if !cfg.GeofenceEnabled() {
		return DistanceCheck{Message: "location check is disabled"}, nil
	}
	return DistanceCheck{
		Distance:        ptr(distance),
		GeofenceEnabled: true,
		Message:         fmt.Sprintf("inside the attendance area (%dm from school)", distance),
	}, nil
}

// TodayStatus returns today's record for userID, or nil when there is none.
func (s *Service) TodayStatus(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	rec, err := s.store.FindByUserAndDate(ctx, userID, clock.Date(s.clock.Now()))
	if err != nil {
		return nil, persistence("load today's attendance", err)
	}
	return rec, nil
}

// History pages through a user's records, newest date first.
func (s *Service) History(ctx context.Context, userID string, page, limit int) (Page, error) {
	if userID == "" {
		return Page{}, ErrUnauthenticated
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	records, total, err := s.store.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return Page{}, persistence("load attendance history", err)
	}
	if records == nil {
		records = []Record{}
	}
	return Page{Records: records, Total: total, Page: page, Limit: limit}, nil
}

// UpdateRecord applies an administrative edit. The edited record must still
// never carry a check-out without a check-in.
func (s *Service) UpdateRecord(ctx context.Context, id string, u RecordUpdate) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return Record{}, invalidInput("record id is required")
	}
	if u.CheckIn == nil && u.CheckOut == nil && u.Status == nil {
		return Record{}, invalidInput("nothing to update")
	}
	if u.Status != nil && !u.Status.Valid() {
		return Record{}, invalidInput("status must be PRESENT, LATE or INCOMPLETE")
	}

	current, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, notFound("attendance record not found")
	}
	if err != nil {
		return Record{}, persistence("load attendance record", err)
	}

	checkIn, checkOut := current.CheckIn, current.CheckOut
	if u.CheckIn != nil {
		checkIn = u.CheckIn
	}
	if u.CheckOut != nil {
		checkOut = u.CheckOut
	}
	if checkOut != nil && checkIn == nil {
		return Record{}, invalidInput("check-out requires a check-in")
	}
	if checkOut != nil && checkOut.Before(*checkIn) {
		return Record{}, invalidInput("check-out cannot be earlier than check-in")
	}

	updated, err := s.store.Update(ctx, id, u)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, notFound("attendance record not found")
	}
	if err != nil {
		return Record{}, persistence("update attendance record", err)
	}
	return updated, nil
}

func originAddress(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "unknown"
	}
	return ip
}

func ptr[T any](v T) *T { return &v }
