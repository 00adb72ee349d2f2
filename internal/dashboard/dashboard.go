// Package dashboard assembles the seller's view of a property.
package dashboard

import (
	"fmt"
	"time"

	"github.com/evcraddock/showinghive/internal/block"
	"github.com/evcraddock/showinghive/internal/feedback"
	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
)

// upcomingWindow is how far ahead recurring blocks are expanded.
const upcomingWindow = 30 * 24 * time.Hour

// ShowingWithFeedback pairs a showing with the feedback left on it.
type ShowingWithFeedback struct {
	*showing.Showing
	Feedback []*feedback.Feedback `json:"feedback"`
}

// Dashboard is everything a seller sees for one property.
type Dashboard struct {
	Property      *property.Property    `json:"property"`
	Showings      []ShowingWithFeedback `json:"showings"`
	BlockedTimes  []*block.Block        `json:"blocked_times"`
	UpcomingBlock []block.Occurrence    `json:"upcoming_blocked_times"`
	Counts        map[string]int        `json:"counts"`
	AverageRating float64               `json:"average_rating"`
}

// Builder loads dashboards.
type Builder struct {
	props    *property.Repository
	showings *showing.Repository
	blocks   *block.Repository
	feedback *feedback.Repository
	now      func() time.Time
}

// NewBuilder creates a dashboard builder.
func NewBuilder(props *property.Repository, showings *showing.Repository, blocks *block.Repository, fb *feedback.Repository) *Builder {
	return &Builder{props: props, showings: showings, blocks: blocks, feedback: fb, now: time.Now}
}

// Build returns the dashboard for propertyID.
func (b *Builder) Build(propertyID string) (*Dashboard, error) {
	prop, err := b.props.GetByID(propertyID)
	if err != nil {
		return nil, err
	}

	list, err := b.showings.List(showing.ListOptions{PropertyID: propertyID})
	if err != nil {
		return nil, fmt.Errorf("loading showings: %w", err)
	}
	byShowing, err := b.feedback.ListByProperty(propertyID)
	if err != nil {
		return nil, fmt.Errorf("loading feedback: %w", err)
	}
	blocks, err := b.blocks.ListByProperty(propertyID)
	if err != nil {
		return nil, fmt.Errorf("loading blocks: %w", err)
	}
	now := b.now().UTC()
	upcoming, err := b.blocks.Occurrences(propertyID, now, now.Add(upcomingWindow))
	if err != nil {
		return nil, fmt.Errorf("expanding blocks: %w", err)
	}

	d := &Dashboard{
		Property:      prop,
		Showings:      make([]ShowingWithFeedback, 0, len(list)),
		BlockedTimes:  blocks,
		UpcomingBlock: upcoming,
		Counts: map[string]int{
			string(showing.StatusPending):  0,
			string(showing.StatusApproved): 0,
			string(showing.StatusDeclined): 0,
		},
	}
	if d.UpcomingBlock == nil {
		d.UpcomingBlock = []block.Occurrence{}
	}

	var ratingSum, ratingCount int
	for _, s := range list {
		fb := byShowing[s.ID]
		if fb == nil {
			fb = []*feedback.Feedback{}
		}
		for _, f := range fb {
			ratingSum += f.Rating
			ratingCount++
		}
		d.Counts[string(s.Status)]++
		d.Showings = append(d.Showings, ShowingWithFeedback{Showing: s, Feedback: fb})
	}
	if ratingCount > 0 {
		d.AverageRating = float64(ratingSum) / float64(ratingCount)
	}

	return d, nil
}
