// ABOUTME: Weekly business-hours table used to gate new conversations
// ABOUTME: Answers is-open, renders the schedule, and describes the next opening in pt-BR

package hours

import (
	"fmt"
	"strings"
	"time"
)

// Window is an opening interval in minutes since local midnight. Close is
// inclusive at minute granularity.
type Window struct {
	Open  int
	Close int
}

func (w Window) String() string {
	return fmt.Sprintf("%s às %s", clock(w.Open), clock(w.Close))
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Schedule is a weekly table of opening windows in one time zone.
type Schedule struct {
	loc  *time.Location
	days [7]*Window
}

// New builds a schedule. Days missing from the map are closed.
func New(loc *time.Location, days map[time.Weekday]Window) *Schedule {
	if loc == nil {
		loc = time.Local
	}
	s := &Schedule{loc: loc}
	for d, w := range days {
		w := w
		s.days[d] = &w
	}
	return s
}

var weekdayKeys = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parse builds a schedule from a time zone name and "HH:MM-HH:MM" windows
// keyed by lowercase English weekday name.
func Parse(timezone string, days map[string]string) (*Schedule, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
		}
	}

	windows := make(map[time.Weekday]Window, len(days))
	for key, raw := range days {
		day, ok := weekdayKeys[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", key)
		}
		w, err := parseWindow(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		windows[day] = w
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("schedule has no open days")
	}

	return New(loc, windows), nil
}

func parseWindow(raw string) (Window, error) {
	openRaw, closeRaw, ok := strings.Cut(raw, "-")
	if !ok {
		return Window{}, fmt.Errorf("window %q: want HH:MM-HH:MM", raw)
	}
	open, err := parseClock(openRaw)
	if err != nil {
		return Window{}, err
	}
	closing, err := parseClock(closeRaw)
	if err != nil {
		return Window{}, err
	}
	if closing <= open {
		return Window{}, fmt.Errorf("window %q closes before it opens", raw)
	}
	return Window{Open: open, Close: closing}, nil
}

func parseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Location returns the schedule's time zone.
func (s *Schedule) Location() *time.Location { return s.loc }

// Day returns the window for a weekday, or nil when closed.
func (s *Schedule) Day(d time.Weekday) *Window { return s.days[d] }

// IsOpen reports whether now falls inside today's window.
func (s *Schedule) IsOpen(now time.Time) bool {
	local := now.In(s.loc)
	w := s.days[local.Weekday()]
	if w == nil {
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= w.Open && m <= w.Close
}

var dayTitles = [7]string{"Domingo", "Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado"}

var dayNames = [7]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

// Describe renders the schedule one line per run of consecutive days sharing
// a window, Monday first, e.g. "Segunda a Sexta: 08:00 às 17:00".
func (s *Schedule) Describe() string {
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}

	var lines []string
	for i := 0; i < len(order); {
		w := s.days[order[i]]
		if w == nil {
			i++
			continue
		}
		j := i
		for j+1 < len(order) && s.days[order[j+1]] != nil && *s.days[order[j+1]] == *w {
			j++
		}

		var label string
		switch j - i {
		case 0:
			label = dayTitles[order[i]]
		case 1:
			label = dayTitles[order[i]] + " e " + dayTitles[order[j]]
		default:
			label = dayTitles[order[i]] + " a " + dayTitles[order[j]]
		}
		lines = append(lines, label+": "+w.String())
		i = j + 1
	}
	return strings.Join(lines, "\n")
}

// NextOpening describes when the shop is next attended, relative to now:
// "hoje às 08:00", "hoje até às 17:00" or "segunda-feira às 08:00".
func (s *Schedule) NextOpening(now time.Time) string {
	local := now.In(s.loc)
	today := local.Weekday()
	m := local.Hour()*60 + local.Minute()

	if w := s.days[today]; w != nil && m <= w.Close {
		if m < w.Open {
			return "hoje às " + clock(w.Open)
		}
		return "hoje até às " + clock(w.Close)
	}

	for i := 1; i <= 7; i++ {
		d := time.Weekday((int(today) + i) % 7)
		if w := s.days[d]; w != nil {
			return dayNames[d] + " às " + clock(w.Open)
		}
	}
	return ""
}
