// Package settings manages the singleton school configuration: the geofence
// reference point, GPS accuracy limit, and the start/end-of-day thresholds.
package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultStartTime is used when no start threshold is configured.
const DefaultStartTime = "07:00"

var (
	// ErrNotFound is returned by the repository when no settings row exists yet.
	ErrNotFound = errors.New("school settings not configured")

	hhmm = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	validate = newValidator()
)

// Settings is the school configuration row.
type Settings struct {
	ID                  string    `json:"id,omitempty"`
	SchoolName          string    `json:"school_name" validate:"max=120"`
	Latitude            float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude           float64   `json:"longitude" validate:"gte=-180,lte=180"`
	AllowedRadiusMeters float64   `json:"allowed_radius_meters" validate:"gte=10,lte=10000"`
	MaxAccuracyMeters   float64   `json:"max_accuracy_meters" validate:"gte=10,lte=500"`
	StartTime           string    `json:"start_time" validate:"hhmm"`
	EndTime             string    `json:"end_time" validate:"hhmm"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
	UpdatedAt           time.Time `json:"updated_at,omitempty"`
}

// GeofenceEnabled is false when the reference point is exactly (0,0).
func (s Settings) GeofenceEnabled() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// StartThreshold returns the late threshold, falling back to DefaultStartTime.
func (s Settings) StartThreshold() (hour, minute int, err error) {
	v := s.StartTime
	if strings.TrimSpace(v) == "" {
		v = DefaultStartTime
	}
	return ParseClock(v)
}

// EndThreshold returns the earliest check-out time. ok is false when no end
// time is configured, in which case check-out is not time gated.
func (s Settings) EndThreshold() (hour, minute int, ok bool, err error) {
	if strings.TrimSpace(s.EndTime) == "" {
		return 0, 0, false, nil
	}
	hour, minute, err = ParseClock(s.EndTime)
	if err != nil {
		return 0, 0, false, err
	}
	return hour, minute, true, nil
}

// ParseClock parses "HH:MM" and tolerates a trailing ":SS" as stored by
// Postgres TIME columns.
func ParseClock(v string) (hour, minute int, err error) {
	v = strings.TrimSpace(v)
	if len(v) == 8 && v[5] == ':' {
		v = v[:5]
	}
	if !hhmm.MatchString(v) {
		return 0, 0, fmt.Errorf("invalid time of day %q", v)
	}
	hour, _ = strconv.Atoi(v[:2])
	minute, _ = strconv.Atoi(v[3:])
	return hour, minute, nil
}

// ValidationError reports the first invalid settings field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks the ranges accepted by an administrative save.
func (s Settings) Validate() error {
	s.SchoolName = strings.TrimSpace(s.SchoolName)
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	return &ValidationError{Field: fe.Field(), Message: messageFor(fe.Field())}
}

func messageFor(field string) string {
	switch field {
	case "SchoolName":
		return "school name must be at most 120 characters"
	case "Latitude", "Longitude":
		return "coordinates are invalid"
	case "AllowedRadiusMeters":
		return "radius must be between 10 and 10000 meters"
	case "MaxAccuracyMeters":
		return "max accuracy must be between 10 and 500 meters"
	case "StartTime", "EndTime":
		return "time must use the 24-hour HH:MM format"
	default:
		return "invalid settings"
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmm.MatchString(fl.Field().String())
	})
	return v
}
