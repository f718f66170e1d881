package aggregate_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/aggregate"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// precinctFixture builds incidents so that each precinct carries the given
// count, all in one (year, borough) group.
func precinctFixture(counts map[int]int) []domain.EnrichedIncident {
	var incidents []domain.EnrichedIncident
	for precinct, n := range counts {
		for i := 0; i < n; i++ {
			incidents = append(incidents, domain.EnrichedIncident{
				Incident: domain.Incident{
					Year:     2021,
					Borough:  domain.Brooklyn,
					Precinct: precinct,
				},
				Population: 2736074,
			})
		}
	}
	return incidents
}

func TestCountBy(t *testing.T) {
	incidents := []domain.EnrichedIncident{
		{Incident: domain.Incident{Hour: 23}},
		{Incident: domain.Incident{Hour: 1}},
		{Incident: domain.Incident{Hour: 23}},
		{Incident: domain.Incident{Hour: 23}},
		{Incident: domain.Incident{Hour: 4}},
	}

	buckets := aggregate.CountBy(incidents, aggregate.ByHour)

	want := []aggregate.Bucket[int]{
		{Key: 1, Count: 1},
		{Key: 4, Count: 1},
		{Key: 23, Count: 3},
	}
	assert.Equal(t, want, buckets)
}

func TestCountByWeekdayAndMonth(t *testing.T) {
	occurred := time.Date(2021, time.November, 11, 15, 4, 0, 0, time.UTC)
	incidents := []domain.EnrichedIncident{
		{Incident: domain.Incident{Weekday: occurred.Weekday(), Month: occurred.Month()}},
		{Incident: domain.Incident{Weekday: time.Sunday, Month: time.January}},
		{Incident: domain.Incident{Weekday: time.Sunday, Month: time.January}},
	}

	byWeekday := aggregate.CountBy(incidents, aggregate.ByWeekday)
	assert.Equal(t, []aggregate.Bucket[time.Weekday]{
		{Key: time.Sunday, Count: 2},
		{Key: time.Thursday, Count: 1},
	}, byWeekday)

	byMonth := aggregate.CountBy(incidents, aggregate.ByMonth)
	assert.Equal(t, []aggregate.Bucket[time.Month]{
		{Key: time.January, Count: 2},
		{Key: time.November, Count: 1},
	}, byMonth)
}

// Counting must depend only on the set of incidents, not their order.
func TestCountByOrderIndependence(t *testing.T) {
	incidents := precinctFixture(map[int]int{79: 5, 44: 3, 67: 2})
	want := aggregate.CountBy(incidents, aggregate.ByPrecinct)

	shuffled := append([]domain.EnrichedIncident(nil), incidents...)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		if diff := cmp.Diff(want, aggregate.CountBy(shuffled, aggregate.ByPrecinct)); diff != "" {
			t.Fatalf("shuffle %d changed the counts (-want +got):\n%s", i, diff)
		}
	}
}

func TestTopNBottomNPrecincts(t *testing.T) {
	incidents := precinctFixture(map[int]int{
		79: 500, 44: 480, 67: 460, 73: 450, 75: 440,
		17: 10, 19: 12, 22: 15, 111: 18, 112: 20,
	})
	buckets := aggregate.CountBy(incidents, aggregate.ByPrecinct)

	top := aggregate.TopN(buckets, 5)
	require.Len(t, top, 5)
	assert.Equal(t, []aggregate.Bucket[int]{
		{Key: 79, Count: 500},
		{Key: 44, Count: 480},
		{Key: 67, Count: 460},
		{Key: 73, Count: 450},
		{Key: 75, Count: 440},
	}, top)

	bottom := aggregate.BottomN(buckets, 5)
	require.Len(t, bottom, 5)
	assert.Equal(t, []aggregate.Bucket[int]{
		{Key: 17, Count: 10},
		{Key: 19, Count: 12},
		{Key: 22, Count: 15},
		{Key: 111, Count: 18},
		{Key: 112, Count: 20},
	}, bottom)
}

func TestTopNTieBreaksOnAscendingKey(t *testing.T) {
	buckets := []aggregate.Bucket[int]{
		{Key: 110, Count: 7},
		{Key: 5, Count: 7},
		{Key: 40, Count: 7},
	}

	top := aggregate.TopN(buckets, 2)
	assert.Equal(t, []aggregate.Bucket[int]{
		{Key: 5, Count: 7},
		{Key: 40, Count: 7},
	}, top)

	bottom := aggregate.BottomN(buckets, 2)
	assert.Equal(t, []aggregate.Bucket[int]{
		{Key: 5, Count: 7},
		{Key: 40, Count: 7},
	}, bottom)
}

func TestTopNClampsToAvailableBuckets(t *testing.T) {
	buckets := []aggregate.Bucket[int]{{Key: 79, Count: 1}}

	assert.Len(t, aggregate.TopN(buckets, 5), 1)
	assert.Empty(t, aggregate.TopN(buckets, 0))
	assert.Empty(t, aggregate.BottomN(buckets, -1))
}

func TestRatesByYearBorough(t *testing.T) {
	var incidents []domain.EnrichedIncident
	for i := 0; i < 10; i++ {
		incidents = append(incidents, domain.EnrichedIncident{
			Incident:   domain.Incident{Year: 2010, Borough: domain.Queens},
			Population: 1_000_000,
		})
	}
	incidents = append(incidents, domain.EnrichedIncident{
		Incident:   domain.Incident{Year: 2010, Borough: domain.Bronx},
		Population: 500_000,
	})

	rates, err := aggregate.RatesByYearBorough(incidents)
	require.NoError(t, err)
	require.Len(t, rates, 2)

	// Sorted by year then borough, so BRONX precedes QUEENS.
	assert.Equal(t, domain.Bronx, rates[0].Borough)
	assert.Equal(t, 1, rates[0].Count)
	assert.Equal(t, 2.0, rates[0].RatePerMillion)

	assert.Equal(t, domain.Queens, rates[1].Borough)
	assert.Equal(t, 10, rates[1].Count)
	assert.Equal(t, 1_000_000.0, rates[1].Population)
	assert.Equal(t, 10.0, rates[1].RatePerMillion)
}

func TestRatesSurfaceInconsistentPopulations(t *testing.T) {
	incidents := []domain.EnrichedIncident{
		{Incident: domain.Incident{Year: 2010, Borough: domain.Queens}, Population: 1_000_000},
		{Incident: domain.Incident{Year: 2010, Borough: domain.Queens}, Population: 999_999},
	}

	_, err := aggregate.RatesByYearBorough(incidents)
	require.Error(t, err)

	var inconsistency aggregate.InconsistencyError
	require.ErrorAs(t, err, &inconsistency)
	assert.Equal(t, 2010, inconsistency.Year)
	assert.Equal(t, domain.Queens, inconsistency.Borough)
	assert.Equal(t, 1_000_000.0, inconsistency.Population)
	assert.Equal(t, 999_999.0, inconsistency.Conflicting)
}

func TestRatesOrderIndependence(t *testing.T) {
	incidents := precinctFixture(map[int]int{79: 4, 44: 6})
	want, err := aggregate.RatesByYearBorough(incidents)
	require.NoError(t, err)

	reversed := make([]domain.EnrichedIncident, len(incidents))
	for i, inc := range incidents {
		reversed[len(incidents)-1-i] = inc
	}
	got, err := aggregate.RatesByYearBorough(reversed)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}
