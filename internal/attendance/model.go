package attendance

import (
	"time"
)

// Status is the stored classification of a day's attendance. ABSENT is not a
// status: it only exists in aggregates, derived from the teacher headcount.
type Status string

const (
	StatusPresent    Status = "PRESENT"
	StatusLate       Status = "LATE"
	StatusIncomplete Status = "INCOMPLETE"
)

// Valid reports whether s is one of the stored statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusIncomplete:
		return true
	}
	return false
}

// Label is the human-readable status name used in reports.
func (s Status) Label() string {
	switch s {
	case StatusPresent:
		return "Present"
	case StatusLate:
		return "Late"
	case StatusIncomplete:
		return "Incomplete"
	}
	return string(s)
}

// Location is a browser geolocation reading.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Record is one user's attendance for one calendar date.
type Record struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	FullName         string     `json:"full_name,omitempty"`
	Date             string     `json:"date"`
	CheckIn          *time.Time `json:"check_in"`
	CheckOut         *time.Time `json:"check_out"`
	Status           Status     `json:"status"`
	IPAddress        *string    `json:"ip_address"`
	CheckInLat       *float64   `json:"check_in_lat"`
	CheckInLng       *float64   `json:"check_in_lng"`
	CheckOutLat      *float64   `json:"check_out_lat"`
	CheckOutLng      *float64   `json:"check_out_lng"`
	DistanceMeters   *int       `json:"distance_from_school_meters"`
	LocationAccuracy *float64   `json:"location_accuracy"`
	CreatedAt        time.Time  `json:"created_at"`
}

// RecordUpdate is an administrative edit. Nil fields are left unchanged.
type RecordUpdate struct {
	CheckIn  *time.Time `json:"check_in"`
	CheckOut *time.Time `json:"check_out"`
	Status   *Status    `json:"status"`
}

// Page is one page of a user's history.
type Page struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
}
