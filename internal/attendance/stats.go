package attendance

import (
	"context"
	"math"
	"time"

	"staffattendance/internal/clock"
)

const trendDays = 7

// Headcount reports how many teachers are expected to attend.
type Headcount interface {
	CountTeachers(ctx context.Context) (int, error)
}

// StatusCounts tallies stored statuses.
type StatusCounts struct {
	Present    int `json:"present"`
	Late       int `json:"late"`
	Incomplete int `json:"incomplete"`
}

func countStatuses(records []Record) StatusCounts {
	var c StatusCounts
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			c.Present++
		case StatusLate:
			c.Late++
		case StatusIncomplete:
			c.Incomplete++
		}
	}
	return c
}

// DailySnapshot is every record of one date.
type DailySnapshot struct {
	Date    string       `json:"date"`
	Records []Record     `json:"records"`
	Counts  StatusCounts `json:"counts"`
}

// TrendPoint is one day of the rolling trend. Absent is derived from the
// teacher headcount and is never stored.
type TrendPoint struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Late    int    `json:"late"`
	Absent  int    `json:"absent"`
}

// DashboardStats summarizes today.
type DashboardStats struct {
	TotalTeachers        int `json:"total_teachers"`
	PresentToday         int `json:"present_today"`
	LateToday            int `json:"late_today"`
	IncompleteToday      int `json:"incomplete_today"`
	AttendancePercentage int `json:"attendance_percentage"`
}

// Slice is one bucket of the status distribution.
type Slice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Dashboard bundles today's stats, the 7-day trend and today's distribution.
type Dashboard struct {
	Stats        DashboardStats `json:"stats"`
	WeeklyTrend  []TrendPoint   `json:"weekly_trend"`
	Distribution []Slice        `json:"status_distribution"`
}

// Stats answers the read-only reporting queries.
type Stats struct {
	store     Store
	headcount Headcount
	clock     clock.Clock
}

// NewStats builds the reporting queries.
func NewStats(store Store, headcount Headcount, clk clock.Clock) *Stats {
	if clk == nil {
		clk = clock.NewSystem(time.UTC)
	}
	return &Stats{store: store, headcount: headcount, clock: clk}
}

// Percentage is round(100 * (present + late) / total), or 0 with no teachers.
func Percentage(present, late, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(present+late) / float64(total) * 100))
}

func absent(total, present, late int) int {
	return max(0, total-present-late)
}

// Daily returns the records of date ordered by check-in. An empty date means
// today.
func (s *Stats) Daily(ctx context.Context, date string) (DailySnapshot, error) {
	if date == "" {
		date = clock.Date(s.clock.Now())
	}
	if _, err := time.Parse(clock.DateLayout, date); err != nil {
		return DailySnapshot{}, invalidInput("date must use the YYYY-MM-DD format")
	}
	records, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return DailySnapshot{}, persistence("load daily attendance", err)
	}
	return DailySnapshot{Date: date, Records: records, Counts: countStatuses(records)}, nil
}

// Monthly returns the records of a calendar month ordered by date, optionally
// for one user. Zero year or month means the current one.
func (s *Stats) Monthly(ctx context.Context, year, month int, userID string) ([]Record, error) {
	now := s.clock.Now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, invalidInput("month must be between 1 and 12")
	}
	if year < 1 || year > 9999 {
		return nil, invalidInput("year is invalid")
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	records, err := s.store.ListRange(ctx, clock.Date(first), clock.Date(last), userID)
	if err != nil {
		return nil, persistence("load monthly attendance", err)
	}
	return records, nil
}

// week is the headcount and stored records behind the rolling trend.
type week struct {
	total   int
	days    []string
	records []Record
}

func (s *Stats) loadWeek(ctx context.Context) (week, error) {
	total, err := s.headcount.CountTeachers(ctx)
	if err != nil {
		return week{}, persistence("count teachers", err)
	}
	days := s.trendDays()
	records, err := s.store.ListRange(ctx, days[0], days[len(days)-1], "")
	if err != nil {
		return week{}, persistence("load weekly attendance", err)
	}
	return week{total: total, days: days, records: records}, nil
}

func (w week) trend() []TrendPoint {
	return buildTrend(w.days, w.records, w.total)
}

// WeeklyTrend returns exactly seven points, oldest first, ending today.
func (s *Stats) WeeklyTrend(ctx context.Context) ([]TrendPoint, error) {
	w, err := s.loadWeek(ctx)
	if err != nil {
		return nil, err
	}
	return w.trend(), nil
}

// Dashboard returns today's stats, the weekly trend and the distribution of
// today's teachers across Present, Late and Absent.
func (s *Stats) Dashboard(ctx context.Context) (Dashboard, error) {
	w, err := s.loadWeek(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	today := w.days[len(w.days)-1]
	total := w.total

	var todays []Record
	for _, r := range w.records {
		if r.Date == today {
			todays = append(todays, r)
		}
	}
	c := countStatuses(todays)

	return Dashboard{
		Stats: DashboardStats{
			TotalTeachers:        total,
			PresentToday:         c.Present,
			LateToday:            c.Late,
			IncompleteToday:      c.Incomplete,
			AttendancePercentage: Percentage(c.Present, c.Late, total),
		},
		WeeklyTrend: w.trend(),
		Distribution: []Slice{
			{Name: StatusPresent.Label(), Value: c.Present},
			{Name: StatusLate.Label(), Value: c.Late},
			{Name: "Absent", Value: absent(total, c.Present, c.Late)},
		},
	}, nil
}

// trendDays lists the last trendDays calendar dates in the clock's location,
// oldest first.
func (s *Stats) trendDays() []string {
	now := s.clock.Now()
	days := make([]string, trendDays)
	for i := range days {
		days[i] = clock.Date(now.AddDate(0, 0, i-(trendDays-1)))
	}
	return days
}

func buildTrend(days []string, records []Record, total int) []TrendPoint {
	byDate := make(map[string]*TrendPoint, len(days))
	points := make([]TrendPoint, len(days))
	for i, d := range days {
		points[i].Date = d
		byDate[d] = &points[i]
	}
	for _, r := range records {
		p, ok := byDate[r.Date]
		if !ok {
			continue
		}
		switch r.Status {
		case StatusPresent:
			p.Present++
		case StatusLate:
			p.Late++
		}
	}
	for i := range points {
		points[i].Absent = absent(total, points[i].Present, points[i].Late)
	}
	return points
}
