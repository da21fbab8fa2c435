package seasonal

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"gopkg.in/yaml.v3"
)

// EventSource lists the seasonal events known to the business.
type EventSource interface {
	Events(ctx context.Context) ([]domain.SeasonalEvent, error)
}

// FindEvent resolves an event by name, case-insensitively.
func FindEvent(ctx context.Context, src EventSource, name string) (domain.SeasonalEvent, error) {
	events, err := src.Events(ctx)
	if err != nil {
		return domain.SeasonalEvent{}, err
	}
	for _, e := range events {
		if strings.EqualFold(strings.TrimSpace(e.Name), strings.TrimSpace(name)) {
			return e, nil
		}
	}
	return domain.SeasonalEvent{}, domain.NewInvalidParameter("event", name, "not found in calendar")
}

// FileCalendar reads events from a YAML file:
//
//	events:
//	  - name: Black Friday 2026
//	    type: black_friday
//	    date: 2026-11-27
//	    multiplier: 1.5
//	    lead_days: 21
type FileCalendar struct {
	path string
}

func NewFileCalendar(path string) *FileCalendar {
	return &FileCalendar{path: path}
}

type calendarFile struct {
	Events []domain.SeasonalEvent `yaml:"events"`
}

func (c *FileCalendar) Events(_ context.Context) ([]domain.SeasonalEvent, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read event calendar: %w", err)
	}
	return ParseCalendarYAML(raw)
}

// ParseCalendarYAML decodes and sorts a calendar document by date.
func ParseCalendarYAML(raw []byte) ([]domain.SeasonalEvent, error) {
	var f calendarFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse event calendar: %w", err)
	}
	sortEvents(f.Events)
	return f.Events, nil
}

var requiredColumns = []string{"name", "type", "date", "multiplier", "lead_days"}

// ParseEventRows converts a tabular sheet (header first) into events. Rows
// that fail to parse are returned as errors with their 1-based row number.
func ParseEventRows(rows [][]string) ([]domain.SeasonalEvent, []error) {
	if len(rows) == 0 {
		return nil, []error{fmt.Errorf("empty calendar sheet")}
	}

	colMap := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			return nil, []error{fmt.Errorf("missing required column: %s", col)}
		}
	}

	get := func(row []string, col string) string {
		i := colMap[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		events []domain.SeasonalEvent
		errs   []error
	)
	for n, row := range rows[1:] {
		line := n + 2
		if get(row, "name") == "" {
			continue
		}
		date, err := time.Parse("2006-01-02", get(row, "date"))
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: invalid date %q", line, get(row, "date")))
			continue
		}
		multiplier, err := strconv.ParseFloat(get(row, "multiplier"), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: invalid multiplier %q", line, get(row, "multiplier")))
			continue
		}
		leadDays, err := strconv.Atoi(get(row, "lead_days"))
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: invalid lead_days %q", line, get(row, "lead_days")))
			continue
		}
		events = append(events, domain.SeasonalEvent{
			Name:       get(row, "name"),
			Type:       get(row, "type"),
			Date:       date,
			Multiplier: multiplier,
			LeadDays:   leadDays,
		})
	}
	sortEvents(events)
	return events, errs
}

func sortEvents(events []domain.SeasonalEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
}
