package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/showinghive/internal/block"
	"github.com/evcraddock/showinghive/internal/dashboard"
	"github.com/evcraddock/showinghive/internal/feedback"
	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
	"github.com/evcraddock/showinghive/internal/tour"
)

const timeLayout = "2006-01-02 15:04"

// printJSON marshals v as indented JSON and writes it to out.
func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows as aligned columns under a header and a dashed rule.
func table(out io.Writer, header []string, rows [][]string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", len(h))
	}
	for _, r := range append([][]string{header, rule}, rows...) {
		if _, err := fmt.Fprintln(w, strings.Join(r, "\t")); err != nil {
			return fmt.Errorf("writing table: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func printProperty(out io.Writer, p *property.Property) {
	fmt.Fprintf(out, "Property %s\n", p.ID)
	fmt.Fprintf(out, "  Name:     %s\n", p.Name)
	fmt.Fprintf(out, "  Address:  %s\n", p.Address)
	fmt.Fprintf(out, "  Owner:    %s\n", p.OwnerEmail)
	fmt.Fprintf(out, "  Added:    %s\n", formatTime(p.CreatedAt))
}

func printPropertyTable(out io.Writer, props []*property.Property) error {
	if len(props) == 0 {
		fmt.Fprintln(out, "No properties found.")
		return nil
	}
	rows := make([][]string, 0, len(props))
	for _, p := range props {
		rows = append(rows, []string{p.ID, truncate(p.Name, 30), truncate(p.Address, 40), p.OwnerEmail})
	}
	if err := table(out, []string{"ID", "NAME", "ADDRESS", "OWNER"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal: %d properties\n", len(props))
	return nil
}

func printBlockTable(out io.Writer, blocks []*block.Block) error {
	if len(blocks) == 0 {
		fmt.Fprintln(out, "No blocked times.")
		return nil
	}
	rows := make([][]string, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, []string{b.ID, formatTime(b.Start), formatTime(b.End), dash(b.RRule), dash(b.Note)})
	}
	return table(out, []string{"ID", "START", "END", "REPEATS", "NOTE"}, rows)
}

func printShowing(out io.Writer, s *showing.Showing) {
	fmt.Fprintf(out, "Showing %s\n", s.ID)
	fmt.Fprintf(out, "  Property: %s\n", s.PropertyID)
	fmt.Fprintf(out, "  Client:   %s\n", s.ClientName)
	if s.ClientPhone != "" {
		fmt.Fprintf(out, "  Phone:    %s\n", s.ClientPhone)
	}
	if s.ClientEmail != "" {
		fmt.Fprintf(out, "  Email:    %s\n", s.ClientEmail)
	}
	fmt.Fprintf(out, "  When:     %s to %s\n", formatTime(s.ScheduledAt), s.End().Local().Format("15:04"))
	fmt.Fprintf(out, "  Status:   %s\n", s.Status.Label())
	if s.LockboxCode != "" && s.CodeExpiresAt != nil {
		fmt.Fprintf(out, "  Code:     %s (expires %s)\n", s.LockboxCode, formatTime(*s.CodeExpiresAt))
	}
}

func printShowingTable(out io.Writer, list []*showing.Showing) error {
	if len(list) == 0 {
		fmt.Fprintln(out, "No showings found.")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{s.ID, s.PropertyID, formatTime(s.ScheduledAt), truncate(s.ClientName, 24), s.Status.Label()})
	}
	return table(out, []string{"ID", "PROPERTY", "WHEN", "CLIENT", "STATUS"}, rows)
}

func printFeedbackList(out io.Writer, list []*feedback.Feedback) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No feedback.")
		return
	}
	for _, f := range list {
		author := f.Author
		if author == "" {
			author = "anonymous"
		}
		fmt.Fprintf(out, "[%s] %s (%s)\n  %s\n\n", formatTime(f.CreatedAt), formatRating(f.Rating), author, f.Comment)
	}
}

func printTour(out io.Writer, t *tour.Tour) {
	fmt.Fprintf(out, "Tour %s", t.ID)
	if t.BuyerName != "" {
		fmt.Fprintf(out, " for %s", t.BuyerName)
	}
	fmt.Fprintln(out)
	for i, st := range t.Itinerary {
		fmt.Fprintf(out, "  %d. %s  %s, %s\n", i+1, formatTime(st.ScheduledAt), st.PropertyName, st.Address)
	}
}

func printTourTable(out io.Writer, tours []*tour.Tour) error {
	if len(tours) == 0 {
		fmt.Fprintln(out, "No tours.")
		return nil
	}
	rows := make([][]string, 0, len(tours))
	for _, t := range tours {
		start, end := tour.Span(t)
		rows = append(rows, []string{t.ID, dash(t.BuyerName), fmt.Sprint(len(t.Itinerary)), formatTime(start), formatTime(end)})
	}
	return table(out, []string{"ID", "BUYER", "STOPS", "FROM", "TO"}, rows)
}

func printDashboard(out io.Writer, d *dashboard.Dashboard) error {
	fmt.Fprintf(out, "%s, %s\n", d.Property.Name, d.Property.Address)
	fmt.Fprintf(out, "Pending %d  Approved %d  Declined %d",
		d.Counts[string(showing.StatusPending)], d.Counts[string(showing.StatusApproved)], d.Counts[string(showing.StatusDeclined)])
	if d.AverageRating > 0 {
		fmt.Fprintf(out, "  Average rating %.1f", d.AverageRating)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out)

	if len(d.Showings) == 0 {
		fmt.Fprintln(out, "No showings.")
	}
	for _, s := range d.Showings {
		fmt.Fprintf(out, "%s  %-10s %s\n", formatTime(s.ScheduledAt), s.Status.Label(), s.ClientName)
		for _, f := range s.Feedback {
			fmt.Fprintf(out, "    %s %s\n", formatRating(f.Rating), f.Comment)
		}
	}

	fmt.Fprintln(out)
	return printBlockTable(out, d.BlockedTimes)
}

// formatRating returns a star representation of a 1-5 rating.
func formatRating(rating int) string {
	if rating < 1 {
		rating = 1
	}
	if rating > feedback.MaxRating {
		rating = feedback.MaxRating
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", feedback.MaxRating-rating)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
