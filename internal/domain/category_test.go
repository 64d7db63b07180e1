package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Distraction ")
	require.NoError(t, err)
	assert.Equal(t, CategoryDistraction, c)

	_, err = ParseCategory("fun")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestNormalizeSubcategory(t *testing.T) {
	assert.Equal(t, SubcategoryGeneral, NormalizeSubcategory("  "))
	assert.Equal(t, SubcategoryLearning, NormalizeSubcategory("Learning"))
	assert.Equal(t, Subcategory("podcasts"), NormalizeSubcategory("podcasts"))
}

func TestParseOutcomeAndPriority(t *testing.T) {
	o, err := ParseOutcome("SNOOZED")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSnoozed, o)
	assert.Equal(t, StatusSnoozed, StatusFor(o))
	assert.True(t, StatusFor(o).Terminal())

	_, err = ParseOutcome("ignored")
	assert.ErrorIs(t, err, ErrUnknownOutcome)

	p, err := ParsePriority("critical")
	require.NoError(t, err)
	assert.True(t, p.Immediate())
	assert.False(t, PriorityMedium.Immediate())

	_, err = ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrUnknownPriority)
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	ts := time.Date(2026, 3, 2, 2, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-02", DateOf(ts, time.UTC))
	assert.Equal(t, "2026-03-01", DateOf(ts, loc))

	day, err := ParseDate("2026-03-01", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, day.Location())
}

func TestDailyStatsAddTime(t *testing.T) {
	d := NewDailyStats("2026-03-01")
	d.AddTime(CategoryProductive, 10)
	d.AddTime(CategoryDistraction, 20)
	d.AddTime(CategoryNeutral, 30)
	assert.Equal(t, int64(60), d.TotalTimeMs())
	assert.Equal(t, int64(10), d.FocusTimeMs)
}
