package seasonal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Defaults(t *testing.T) {
	c := NewCatalog()
	assert.Equal(t, 0.8, c.UpliftsFor("black_friday")["electronics"])
	assert.Equal(t, 0.8, c.UpliftsFor("Black Friday")["electronics"])
	assert.Empty(t, c.UpliftsFor("unknown"))
	assert.Len(t, c.Types(), 4)
}

func TestCatalog_UpliftsForReturnsCopy(t *testing.T) {
	c := NewCatalog()
	u := c.UpliftsFor("christmas")
	u["toys"] = 99
	assert.Equal(t, 1.0, c.UpliftsFor("christmas")["toys"])
}

func TestCatalog_Overlay(t *testing.T) {
	c := NewCatalog()
	err := c.Overlay([]byte(`
events:
  black_friday:
    Electronics: 1.2
  singles_day:
    fashion: 0.9
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"electronics": 1.2}, c.UpliftsFor("black_friday"))
	assert.Equal(t, 0.9, c.UpliftsFor("singles_day")["fashion"])
	assert.Equal(t, 1.0, c.UpliftsFor("christmas")["toys"], "other types keep their defaults")
}

func TestCatalog_OverlayRejectsNegativeUplift(t *testing.T) {
	err := NewCatalog().Overlay([]byte("events:\n  christmas:\n    toys: -0.5\n"))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.UpliftsFor("summer_sales"))

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFileCalendar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
events:
  - name: Christmas 2026
    type: christmas
    date: 2026-12-25
    multiplier: 1.2
    lead_days: 30
  - name: Black Friday 2026
    type: black_friday
    date: 2026-11-27
    multiplier: 1.5
    lead_days: 21
    category_uplifts:
      electronics: 0.9
`), 0o644))

	cal := NewFileCalendar(path)
	events, err := cal.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Black Friday 2026", events[0].Name, "sorted by date")
	assert.Equal(t, time.Date(2026, 11, 27, 0, 0, 0, 0, time.UTC), events[0].Date)
	assert.Equal(t, 21, events[0].LeadDays)
	assert.Equal(t, 0.9, events[0].CategoryUplifts["electronics"])

	found, err := FindEvent(context.Background(), cal, "christmas 2026")
	require.NoError(t, err)
	assert.Equal(t, 30, found.LeadDays)

	_, err = FindEvent(context.Background(), cal, "Easter")
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestParseEventRows(t *testing.T) {
	rows := [][]string{
		{"Name", "Type", "Date", "Multiplier", "Lead_Days"},
		{"Back to school", "back_to_school", "2026-09-01", "1.1", "28"},
		{"Summer", "summer_sales", "2026-07-01", "1.3", "14"},
		{"", "", "", "", ""},
		{"Broken", "christmas", "25/12/2026", "1", "10"},
		{"Short row", "christmas"},
	}

	events, errs := ParseEventRows(rows)
	require.Len(t, events, 2)
	assert.Equal(t, "Summer", events[0].Name)
	assert.Equal(t, 1.3, events[0].Multiplier)
	assert.Equal(t, 28, events[1].LeadDays)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "row 5")
}

func TestParseEventRows_MissingColumn(t *testing.T) {
	_, errs := ParseEventRows([][]string{{"name", "type", "date"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "multiplier")
}
