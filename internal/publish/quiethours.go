package publish

import (
	"fmt"
	"time"
)

// QuietHours is the fixed daily window during which no publishing is
// attempted. The window is evaluated in the configured reference timezone and
// may cross midnight (start 22, end 6). Checked at cycle start only.
type QuietHours struct {
	startHour int
	endHour   int
	location  *time.Location
}

// NewQuietHours builds the policy for a daily [startHour, endHour) window
func NewQuietHours(startHour, endHour int, timezone string) (*QuietHours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	return &QuietHours{startHour: startHour, endHour: endHour, location: loc}, nil
}

// Contains reports whether now falls inside the blackout window
func (q *QuietHours) Contains(now time.Time) bool {
	if q.startHour == q.endHour {
		return false
	}

	hour := now.In(q.location).Hour()
	if q.startHour < q.endHour {
		return hour >= q.startHour && hour < q.endHour
	}
	// Window wraps midnight
	return hour >= q.startHour || hour < q.endHour
}

// String describes the window for status reporting
func (q *QuietHours) String() string {
	return fmt.Sprintf("%02d:00-%02d:00 %s", q.startHour, q.endHour, q.location)
}
