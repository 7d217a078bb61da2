package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// Preference holds one customer's channel opt-outs and quiet-hours window.
// Quiet hours are stored as "HH:MM" wall-clock strings; a window may span
// midnight (e.g. 22:00 to 06:00).
type Preference struct {
	shared.TenantAggregateRoot
	CustomerID      uuid.UUID
	ReceiveSMS      bool
	ReceiveEmail    bool
	ReceiveWhatsapp bool
	ReceivePush     bool
	QuietHoursStart string
	QuietHoursEnd   string
}

// NewPreference creates a preference record with every channel enabled
func NewPreference(tenantID, customerID uuid.UUID) (*Preference, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Preference customer is required")
	}
	return &Preference{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		ReceiveSMS:          true,
		ReceiveEmail:        true,
		ReceiveWhatsapp:     true,
		ReceivePush:         true,
	}, nil
}

// Allows reports whether the customer accepts messages on the channel.
// In-app notifications cannot be opted out of.
func (p *Preference) Allows(channel Channel) bool {
	switch channel {
	case ChannelSMS:
		return p.ReceiveSMS
	case ChannelEmail:
		return p.ReceiveEmail
	case ChannelWhatsapp:
		return p.ReceiveWhatsapp
	case ChannelPush:
		return p.ReceivePush
	case ChannelInApp:
		return true
	}
	return false
}

// SetQuietHours configures the do-not-disturb window
func (p *Preference) SetQuietHours(start, end string) error {
	if _, err := parseClock(start); err != nil {
		return shared.NewDomainError("INVALID_INPUT", "Invalid quiet hours start: "+start)
	}
	if _, err := parseClock(end); err != nil {
		return shared.NewDomainError("INVALID_INPUT", "Invalid quiet hours end: "+end)
	}
	p.QuietHoursStart = start
	p.QuietHoursEnd = end
	p.IncrementVersion()
	p.UpdatedAt = time.Now()
	return nil
}

// ClearQuietHours removes the do-not-disturb window
func (p *Preference) ClearQuietHours() {
	p.QuietHoursStart = ""
	p.QuietHoursEnd = ""
	p.IncrementVersion()
	p.UpdatedAt = time.Now()
}

// InQuietHours reports whether now falls inside the quiet-hours window and,
// if so, the time the window ends
func (p *Preference) InQuietHours(now time.Time) (bool, time.Time) {
	if p.QuietHoursStart == "" || p.QuietHoursEnd == "" {
		return false, time.Time{}
	}
	startMin, err := parseClock(p.QuietHoursStart)
	if err != nil {
		return false, time.Time{}
	}
	endMin, err := parseClock(p.QuietHoursEnd)
	if err != nil {
		return false, time.Time{}
	}

	nowMin := now.Hour()*60 + now.Minute()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowEnd := midnight.Add(time.Duration(endMin) * time.Minute)

	if startMin <= endMin {
		if nowMin >= startMin && nowMin < endMin {
			return true, windowEnd
		}
		return false, time.Time{}
	}

	// Window spans midnight
	if nowMin >= startMin {
		return true, windowEnd.Add(24 * time.Hour)
	}
	if nowMin < endMin {
		return true, windowEnd
	}
	return false, time.Time{}
}

// parseClock converts "HH:MM" to minutes since midnight
func parseClock(s string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value out of range: %s", s)
	}
	return hour*60 + minute, nil
}
