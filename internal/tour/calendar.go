package tour

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/evcraddock/showinghive/internal/showing"
)

// Calendar renders the tour as an iCalendar feed, one event per stop.
func Calendar(t *Tour) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//showinghive//tour//EN")

	for _, st := range t.Itinerary {
		ev := cal.AddEvent(fmt.Sprintf("%s@showinghive", st.ShowingID))
		ev.SetDtStampTime(t.CreatedAt.UTC())
		ev.SetStartAt(st.ScheduledAt.UTC())
		ev.SetEndAt(st.ScheduledAt.Add(showing.Duration).UTC())
		ev.SetSummary("Showing: " + st.PropertyName)
		ev.SetLocation(st.Address)
		desc := fmt.Sprintf("Tour %s", t.ID)
		if t.BuyerName != "" {
			desc += " for " + t.BuyerName
		}
		ev.SetDescription(desc)
	}

	return cal.Serialize()
}

// Span returns the first start and last end of the tour.
func Span(t *Tour) (time.Time, time.Time) {
	if len(t.Itinerary) == 0 {
		return time.Time{}, time.Time{}
	}
	first := t.Itinerary[0].ScheduledAt
	last := t.Itinerary[len(t.Itinerary)-1].ScheduledAt.Add(showing.Duration)
	return first, last
}
