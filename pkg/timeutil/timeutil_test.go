package timeutil

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amsterdam(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	return loc
}

func TestDayOf_RoundTrip(t *testing.T) {
	d := DayOf(2024, time.March, 10)
	assert.Equal(t, "2024-03-10", d.String())
	assert.Equal(t, time.Sunday, d.Weekday())
	assert.Equal(t, DayOf(2024, time.March, 11), d.AddDays(1))
	assert.Equal(t, DayOf(2024, time.March, 1), DayOf(2024, time.February, 30))

	parsed, err := ParseDay("2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestStreakDay_Cutover(t *testing.T) {
	loc := amsterdam(t)
	cal := MustCalendar(loc, 4, time.Monday)

	before := time.Date(2024, time.March, 10, 3, 59, 0, 0, loc)
	at := time.Date(2024, time.March, 10, 4, 0, 0, 0, loc)

	assert.Equal(t, DayOf(2024, time.March, 9), cal.StreakDay(before))
	assert.Equal(t, DayOf(2024, time.March, 10), cal.StreakDay(at))
	assert.Equal(t, DayOf(2024, time.March, 10), cal.StreakDay(at.UTC()), "instant location must not matter")
}

func TestStreakDay_ZeroCutoverIsMidnight(t *testing.T) {
	cal := MustCalendar(time.UTC, 0, time.Monday)
	assert.Equal(t, DayOf(2024, time.January, 1),
		cal.StreakDay(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, DayOf(2023, time.December, 31),
		cal.StreakDay(time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC)))
}

func TestStreakDay_DSTTransitions(t *testing.T) {
	loc := amsterdam(t)
	cal := MustCalendar(loc, 4, time.Monday)

	// Spring forward: 2024-03-31 02:00 CET jumps to 03:00 CEST.
	springEarly := time.Date(2024, time.March, 31, 3, 30, 0, 0, loc)
	springLate := time.Date(2024, time.March, 31, 4, 0, 0, 0, loc)
	assert.Equal(t, DayOf(2024, time.March, 30), cal.StreakDay(springEarly))
	assert.Equal(t, DayOf(2024, time.March, 31), cal.StreakDay(springLate))

	// Fall back: 2024-10-27 03:00 CEST returns to 02:00 CET.
	secondTwoThirty := time.Date(2024, time.October, 27, 1, 30, 0, 0, time.UTC) // 02:30 CET
	assert.Equal(t, 2, secondTwoThirty.In(loc).Hour())
	assert.Equal(t, DayOf(2024, time.October, 26), cal.StreakDay(secondTwoThirty))
}

func TestStreakDay_SuccessiveDaysAcrossDST(t *testing.T) {
	loc := amsterdam(t)
	cal := MustCalendar(loc, 4, time.Monday)

	// A 23-hour and a 25-hour day each still advance the streak day by one.
	start := time.Date(2024, time.March, 29, 12, 0, 0, 0, loc)
	prev := cal.StreakDay(start)
	for i := 1; i <= 4; i++ {
		next := cal.StreakDay(time.Date(2024, time.March, 29+i, 12, 0, 0, 0, loc))
		assert.Equal(t, 1, next.Since(prev))
		prev = next
	}

	fallA := cal.StreakDay(time.Date(2024, time.October, 26, 4, 0, 0, 0, loc))
	fallB := cal.StreakDay(time.Date(2024, time.October, 27, 4, 0, 0, 0, loc))
	assert.Equal(t, 1, fallB.Since(fallA))
}

func TestWeekStart(t *testing.T) {
	monday := MustCalendar(time.UTC, 0, time.Monday)
	sunday := MustCalendar(time.UTC, 0, time.Sunday)

	wed := DayOf(2024, time.March, 13)
	assert.Equal(t, DayOf(2024, time.March, 11), monday.WeekStart(wed))
	assert.Equal(t, DayOf(2024, time.March, 10), sunday.WeekStart(wed))

	mon := DayOf(2024, time.March, 11)
	assert.Equal(t, mon, monday.WeekStart(mon))

	sun := DayOf(2024, time.March, 17)
	assert.Equal(t, mon, monday.WeekStart(sun))
	assert.Equal(t, sun, sunday.WeekStart(sun))
}

func TestNewCalendar_Validation(t *testing.T) {
	_, err := NewCalendar(time.UTC, 24, time.Monday)
	assert.Error(t, err)
	_, err = NewCalendar(time.UTC, -1, time.Monday)
	assert.Error(t, err)

	cal, err := NewCalendar(nil, 4, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cal.Location())
}

func TestDayStart(t *testing.T) {
	loc := amsterdam(t)
	cal := MustCalendar(loc, 4, time.Monday)
	d := DayOf(2024, time.March, 31)

	start := cal.DayStart(d)
	assert.Equal(t, d, cal.StreakDay(start))
	assert.Equal(t, d-1, cal.StreakDay(start.Add(-time.Second)))
}

func TestDay_JSON(t *testing.T) {
	type doc struct {
		Last Day `json:"last"`
		None Day `json:"none"`
	}
	b, err := json.Marshal(doc{Last: DayOf(2024, time.May, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"last":"2024-05-01","none":""}`, string(b))

	var back doc
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, DayOf(2024, time.May, 1), back.Last)
	assert.True(t, back.None.IsZero())
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("monday")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d)

	d, err = ParseWeekday("Sun")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}
