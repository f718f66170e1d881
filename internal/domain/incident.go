package domain

import (
	"strings"
	"time"
)

// Borough identifies one of the five NYC administrative subdivisions used by
// the dataset's BORO column. Values are uppercase, matching the raw data.
type Borough string

const (
	Bronx        Borough = "BRONX"
	Brooklyn     Borough = "BROOKLYN"
	Manhattan    Borough = "MANHATTAN"
	Queens       Borough = "QUEENS"
	StatenIsland Borough = "STATEN ISLAND"
)

// Boroughs returns the closed borough enumeration in a fixed order.
func Boroughs() []Borough {
	return []Borough{Bronx, Brooklyn, Manhattan, Queens, StatenIsland}
}

// NormalizeBorough uppercases and collapses whitespace so formatting
// differences across dataset vintages map to the same value. The result is
// not guaranteed to be a known borough; unknown values surface downstream as
// enrichment lookup failures.
func NormalizeBorough(s string) Borough {
	return Borough(strings.Join(strings.Fields(strings.ToUpper(s)), " "))
}

// Known reports whether b is one of the five boroughs.
func (b Borough) Known() bool {
	switch b {
	case Bronx, Brooklyn, Manhattan, Queens, StatenIsland:
		return true
	default:
		return false
	}
}

// RawRecord is one row of the shooting incident CSV, values exactly as read.
// Column-order mapping by header name happens in the dataset adapter; typed
// parsing happens in ParseIncident.
type RawRecord struct {
	IncidentKey  string
	OccurDate    string // MM/DD/YYYY
	OccurTime    string // HH:MM:SS, 24-hour
	Borough      string
	Precinct     string
	MurderFlag   string // STATISTICAL_MURDER_FLAG, "true"/"false" ("Y"/"N" in older vintages)
	PerpAgeGroup string
	PerpSex      string
	PerpRace     string
	VicAgeGroup  string
	VicSex       string
	VicRace      string
	Latitude     string
	Longitude    string
}

// Demographics holds the nullable demographic categories for one party of an
// incident. Dataset null tokens are normalized to empty strings at parse time.
type Demographics struct {
	AgeGroup string `json:"age_group,omitempty"`
	Sex      string `json:"sex,omitempty"`
	Race     string `json:"race,omitempty"`
}

// Geo is a WGS-84 coordinate pair from the dataset's Latitude/Longitude columns.
type Geo struct {
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// Incident is the typed representation of one shooting incident row.
// Calendar fields are derived once from OccurredAt at parse time.
type Incident struct {
	ID          string       `json:"id"`
	IncidentKey string       `json:"incident_key"`
	OccurredAt  time.Time    `json:"occurred_at"`
	Year        int          `json:"year"`
	Month       time.Month   `json:"month"`
	Day         int          `json:"day"`
	Weekday     time.Weekday `json:"weekday"`
	Hour        int          `json:"hour"`
	Borough     Borough      `json:"borough"`
	Precinct    int          `json:"precinct"`
	Murder      bool         `json:"murder"`
	Perpetrator Demographics `json:"perpetrator,omitempty"`
	Victim      Demographics `json:"victim,omitempty"`
	Geo         Geo          `json:"geo,omitempty"`
}

// EnrichedIncident is an Incident with the census population of its
// (year, borough) attached. Population is set exactly once during enrichment
// and read-only afterward; every enriched record's population equals the
// table lookup for its key, never a default.
type EnrichedIncident struct {
	Incident
	Population  float64   `json:"population"`
	ProcessedAt time.Time `json:"processed_at"`
}

// WithPopulation attaches a population figure to the incident and stamps
// ProcessedAt from the package clock.
func (i Incident) WithPopulation(population float64) EnrichedIncident {
	return EnrichedIncident{
		Incident:    i,
		Population:  population,
		ProcessedAt: clock.Now(),
	}
}
