package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeRow() RawRecord {
	return RawRecord{
		IncidentKey:  "236168668",
		OccurDate:    "11/11/2021",
		OccurTime:    "15:04:00",
		Borough:      "BROOKLYN",
		Precinct:     "79",
		MurderFlag:   "false",
		PerpAgeGroup: "18-24",
		PerpSex:      "M",
		PerpRace:     "BLACK",
		VicAgeGroup:  "25-44",
		VicSex:       "M",
		VicRace:      "BLACK",
		Latitude:     "40.68491",
		Longitude:    "-73.95565",
	}
}

func TestParseIncident(t *testing.T) {
	t.Run("complete row", func(t *testing.T) {
		inc, err := ParseIncident(completeRow())
		require.NoError(t, err)

		assert.Equal(t, "236168668", inc.IncidentKey)
		assert.Equal(t, time.Date(2021, time.November, 11, 15, 4, 0, 0, time.UTC), inc.OccurredAt)
		assert.Equal(t, 2021, inc.Year)
		assert.Equal(t, time.November, inc.Month)
		assert.Equal(t, 11, inc.Day)
		assert.Equal(t, time.Thursday, inc.Weekday)
		assert.Equal(t, 15, inc.Hour)
		assert.Equal(t, Brooklyn, inc.Borough)
		assert.Equal(t, 79, inc.Precinct)
		assert.False(t, inc.Murder)
		assert.Equal(t, Demographics{AgeGroup: "18-24", Sex: "M", Race: "BLACK"}, inc.Perpetrator)
		assert.Equal(t, Demographics{AgeGroup: "25-44", Sex: "M", Race: "BLACK"}, inc.Victim)
		assert.Equal(t, 40.68491, inc.Geo.Lat)
		assert.Equal(t, -73.95565, inc.Geo.Lon)
		assert.True(t, strings.HasPrefix(inc.ID, "incident-"))
	})

	t.Run("murder flag vintages", func(t *testing.T) {
		cases := map[string]bool{
			"true":  true,
			"TRUE":  true,
			"Y":     true,
			"false": false,
			"N":     false,
			"":      false,
			"maybe": false,
		}
		for raw, want := range cases {
			rec := completeRow()
			rec.MurderFlag = raw
			inc, err := ParseIncident(rec)
			require.NoError(t, err)
			assert.Equal(t, want, inc.Murder, "flag %q", raw)
		}
	})

	t.Run("null demographic tokens", func(t *testing.T) {
		rec := completeRow()
		rec.PerpAgeGroup = "(null)"
		rec.PerpSex = "U"
		rec.PerpRace = "UNKNOWN"
		rec.VicAgeGroup = ""

		inc, err := ParseIncident(rec)
		require.NoError(t, err)

		assert.Equal(t, Demographics{}, inc.Perpetrator)
		assert.Empty(t, inc.Victim.AgeGroup)
		assert.Equal(t, "M", inc.Victim.Sex)
	})

	t.Run("missing time of day reads as midnight", func(t *testing.T) {
		rec := completeRow()
		rec.OccurTime = ""

		inc, err := ParseIncident(rec)
		require.NoError(t, err)

		assert.Equal(t, 0, inc.Hour)
		assert.Equal(t, time.Date(2021, time.November, 11, 0, 0, 0, 0, time.UTC), inc.OccurredAt)
	})

	t.Run("blank coordinates read as zero", func(t *testing.T) {
		rec := completeRow()
		rec.Latitude = ""
		rec.Longitude = "not-a-number"

		inc, err := ParseIncident(rec)
		require.NoError(t, err)

		assert.Zero(t, inc.Geo.Lat)
		assert.Zero(t, inc.Geo.Lon)
	})

	t.Run("invalid date", func(t *testing.T) {
		rec := completeRow()
		rec.OccurDate = "2021-11-11"

		_, err := ParseIncident(rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "occur date")
	})

	t.Run("invalid time", func(t *testing.T) {
		rec := completeRow()
		rec.OccurTime = "25:99"

		_, err := ParseIncident(rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "occur time")
	})

	t.Run("invalid precinct", func(t *testing.T) {
		rec := completeRow()
		rec.Precinct = "seventy-nine"

		_, err := ParseIncident(rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "precinct")
	})

	t.Run("borough is normalized", func(t *testing.T) {
		rec := completeRow()
		rec.Borough = " Staten  Island "

		inc, err := ParseIncident(rec)
		require.NoError(t, err)
		assert.Equal(t, StatenIsland, inc.Borough)
	})
}

func TestGenerateIDDeterminism(t *testing.T) {
	first, err := ParseIncident(completeRow())
	require.NoError(t, err)
	second, err := ParseIncident(completeRow())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same row must hash to the same ID")

	// Multi-victim incidents share INCIDENT_KEY but differ in victim fields.
	other := completeRow()
	other.VicAgeGroup = "45-64"
	third, err := ParseIncident(other)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, third.ID, "victim fields must disambiguate the ID")
}
