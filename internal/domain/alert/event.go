package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a single alert occurrence bound to one subscriber. Events are
// consumed exactly once by the dispatcher and are not persisted beyond
// the suppression log entry.
type Event struct {
	ID             uuid.UUID
	SubscriberID   uuid.UUID
	Level          Level
	WindSpeedKMH   float64
	Time           time.Time
	Place          string
	Message        string
	UnsubscribeURL string
}

// NewEvent builds an event for one subscriber, filling the message with a
// default rendering when the caller did not supply one.
func NewEvent(sub Subscriber, level Level, windKMH float64, at time.Time, place, message string) Event {
	ev := Event{
		ID:           uuid.New(),
		SubscriberID: sub.ID,
		Level:        level,
		WindSpeedKMH: windKMH,
		Time:         at,
		Place:        place,
		Message:      message,
	}
	if ev.Message == "" {
		ev.Message = ev.defaultMessage()
	}
	return ev
}

func (e Event) defaultMessage() string {
	where := e.Place
	if where == "" {
		where = "your area"
	}
	return fmt.Sprintf("%s wind alert for %s: gusts up to %.0f km/h expected around %s.",
		titleFor(e.Level), where, e.WindSpeedKMH, e.Time.Format("15:04 MST"))
}

// Title renders the short per-level heading used by push and email.
func (e Event) Title() string {
	return titleFor(e.Level) + " wind alert"
}

func titleFor(l Level) string {
	switch l {
	case LevelDanger:
		return "Danger"
	case LevelWarning:
		return "Warning"
	case LevelCaution:
		return "Caution"
	default:
		return "Info"
	}
}
