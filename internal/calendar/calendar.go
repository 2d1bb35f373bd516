package calendar

import (
	"sort"
	"time"

	"reizoko/internal/models"
)

const isoDate = "2006-01-02"

// MaxStepsPerEvent bounds recurrence expansion so malformed data (an endDate
// decades away, or none at all) cannot spin the walk forever. Expansion stops
// silently at the cap even if the window is not exhausted.
const MaxStepsPerEvent = 500

// Expand turns event definitions into the flat, date-ordered list of concrete
// occurrences inside [startDate, endDate], both bounds inclusive ISO dates.
// An inverted window yields an empty result.
func Expand(events []models.CalendarEvent, startDate, endDate string) []models.EventOccurrence {
	start, err := time.Parse(isoDate, startDate)
	if err != nil {
		return nil
	}
	end, err := time.Parse(isoDate, endDate)
	if err != nil || end.Before(start) {
		return nil
	}

	occurrences := make([]models.EventOccurrence, 0)
	for _, ev := range events {
		occurrences = append(occurrences, expandEvent(ev, start, end)...)
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Date != occurrences[j].Date {
			return occurrences[i].Date < occurrences[j].Date
		}
		return timeKey(occurrences[i].Time) < timeKey(occurrences[j].Time)
	})
	return occurrences
}

func expandEvent(ev models.CalendarEvent, start, end time.Time) []models.EventOccurrence {
	anchor, err := time.Parse(isoDate, ev.Date)
	if err != nil {
		return nil
	}

	if ev.Recurring == models.RecurNone || ev.Recurring == "" {
		if anchor.Before(start) || anchor.After(end) {
			return nil
		}
		return []models.EventOccurrence{makeOccurrence(ev, ev.Date, false)}
	}

	// A series with no endDate is unbounded; the window (and the step cap)
	// are what keep its expansion finite.
	seriesEnd := end
	if ev.EndDate != "" {
		if parsed, err := time.Parse(isoDate, ev.EndDate); err == nil && parsed.Before(end) {
			seriesEnd = parsed
		}
	}

	excluded := make(map[string]struct{}, len(ev.ExceptionDates))
	for _, d := range ev.ExceptionDates {
		excluded[d] = struct{}{}
	}

	var out []models.EventOccurrence
	cursor := anchor
	for step := 0; step < MaxStepsPerEvent && !cursor.After(seriesEnd); step++ {
		if !cursor.Before(start) {
			date := cursor.Format(isoDate)
			if _, skip := excluded[date]; !skip {
				out = append(out, makeOccurrence(ev, date, true))
			}
		}
		switch ev.Recurring {
		case models.RecurDaily:
			cursor = cursor.AddDate(0, 0, 1)
		case models.RecurWeekly:
			cursor = cursor.AddDate(0, 0, 7)
		case models.RecurMonthly:
			cursor = cursor.AddDate(0, 1, 0)
		default:
			return out
		}
	}
	return out
}

func makeOccurrence(ev models.CalendarEvent, date string, recurring bool) models.EventOccurrence {
	return models.EventOccurrence{
		Date:        date,
		Time:        ev.Time,
		Title:       ev.Title,
		EventID:     ev.ID,
		IsRecurring: recurring,
	}
}

// timeKey makes all-day events sort before timed ones on the same date.
func timeKey(t string) string {
	if t == "" {
		return "00:00"
	}
	return t
}

// MonthRange returns the first and last day of the month as ISO dates.
func MonthRange(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(isoDate), last.Format(isoDate)
}

// WeekRange returns the Monday and Sunday of the week containing anchor.
// Sunday belongs to the week that ends on it, not the one starting the next
// day.
func WeekRange(anchor string) (string, string) {
	t, err := time.Parse(isoDate, anchor)
	if err != nil {
		return "", ""
	}
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0, Sunday = 6
	monday := t.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)
	return monday.Format(isoDate), sunday.Format(isoDate)
}

// MonthGrid lays the month out in Monday-first rows of seven cells. Pad cells
// outside the month are empty strings; the final row is padded to full width.
func MonthGrid(year int, month time.Month) [][]string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	lead := (int(first.Weekday()) + 6) % 7

	cells := make([]string, 0, lead+days+6)
	for i := 0; i < lead; i++ {
		cells = append(cells, "")
	}
	for day := 1; day <= days; day++ {
		cells = append(cells, time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(isoDate))
	}
	for len(cells)%7 != 0 {
		cells = append(cells, "")
	}

	grid := make([][]string, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		grid = append(grid, cells[i:i+7])
	}
	return grid
}
