package notify

import (
	"fmt"
	"time"

	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
)

const whenLayout = "2006-01-02 15:04"

// Message is the text sent to a client for one event.
type Message struct {
	SMS     string
	Subject string
	Body    string
}

// Compose renders the client message for ev. Times are shown in loc.
func Compose(ev showing.Event, s *showing.Showing, p *property.Property, loc *time.Location) Message {
	if loc == nil {
		loc = time.UTC
	}
	name := s.PropertyID
	if p != nil && p.Name != "" {
		name = p.Name
	}
	when := s.ScheduledAt.In(loc).Format(whenLayout)
	expires := ""
	if s.CodeExpiresAt != nil {
		expires = s.CodeExpiresAt.In(loc).Format(whenLayout)
	}

	var m Message
	var text string
	switch ev {
	case showing.EventRequested:
		text = fmt.Sprintf("Your showing request for %s on %s has been received and is pending approval.", name, when)
		m.SMS = text
		m.Subject = "Showing request received"
	case showing.EventApproved:
		m.SMS = fmt.Sprintf("Your showing for %s at %s has been approved. Lockbox code: %s (expires %s).", name, when, s.LockboxCode, expires)
		m.Subject = "Showing approved"
		text = fmt.Sprintf("Your showing for %s at %s has been approved.\nYour lockbox code is %s and will expire at %s.", name, when, s.LockboxCode, expires)
	case showing.EventDeclined:
		text = fmt.Sprintf("Your showing request for %s on %s has been declined.", name, when)
		m.SMS = text
		m.Subject = "Showing declined"
	case showing.EventRescheduled:
		m.Subject = "Showing rescheduled"
		if s.Status == showing.StatusApproved {
			m.SMS = fmt.Sprintf("Your showing for %s has been rescheduled to %s. New lockbox code: %s (expires %s).", name, when, s.LockboxCode, expires)
			text = fmt.Sprintf("Your showing for %s has been rescheduled to %s.\nYour new lockbox code is %s and will expire at %s.", name, when, s.LockboxCode, expires)
		} else {
			text = fmt.Sprintf("Your showing request for %s has been rescheduled to %s and is pending approval.", name, when)
			m.SMS = text
		}
	case showing.EventReminder:
		m.SMS = fmt.Sprintf("Reminder: your showing for %s is at %s. Lockbox code: %s.", name, when, s.LockboxCode)
		m.Subject = "Showing reminder"
		text = fmt.Sprintf("This is a reminder that your showing for %s is at %s.\nYour lockbox code is %s and will expire at %s.", name, when, s.LockboxCode, expires)
	default:
		text = fmt.Sprintf("Your showing for %s at %s was updated.", name, when)
		m.SMS = text
		m.Subject = "Showing updated"
	}

	m.Body = fmt.Sprintf("Hello %s,\n\n%s\n\nThank you.", s.ClientName, text)
	return m
}
