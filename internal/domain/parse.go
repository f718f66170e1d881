package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	occurDateLayout = "01/02/2006"
	occurTimeLayout = "15:04:05"
)

// nullTokens are the dataset's missing-value markers for demographic columns,
// uppercased. All collapse to the empty string.
var nullTokens = map[string]struct{}{
	"":        {},
	"(NULL)":  {},
	"UNKNOWN": {},
	"U":       {},
}

// ParseIncident converts a raw CSV row into a typed Incident. The occurrence
// date and time combine into one UTC timestamp; calendar fields are derived
// here, once. A row with an unparseable date, time, or precinct is rejected
// so a malformed value never reaches the aggregation keys.
func ParseIncident(rec RawRecord) (Incident, error) {
	occurredAt, err := parseOccurrence(rec.OccurDate, rec.OccurTime)
	if err != nil {
		return Incident{}, err
	}

	precinct, err := strconv.Atoi(strings.TrimSpace(rec.Precinct))
	if err != nil {
		return Incident{}, fmt.Errorf("parse precinct %q: %w", rec.Precinct, err)
	}

	return Incident{
		ID:          generateID(rec),
		IncidentKey: strings.TrimSpace(rec.IncidentKey),
		OccurredAt:  occurredAt,
		Year:        occurredAt.Year(),
		Month:       occurredAt.Month(),
		Day:         occurredAt.Day(),
		Weekday:     occurredAt.Weekday(),
		Hour:        occurredAt.Hour(),
		Borough:     NormalizeBorough(rec.Borough),
		Precinct:    precinct,
		Murder:      parseMurderFlag(rec.MurderFlag),
		Perpetrator: Demographics{
			AgeGroup: normalizeCategory(rec.PerpAgeGroup),
			Sex:      normalizeCategory(rec.PerpSex),
			Race:     normalizeCategory(rec.PerpRace),
		},
		Victim: Demographics{
			AgeGroup: normalizeCategory(rec.VicAgeGroup),
			Sex:      normalizeCategory(rec.VicSex),
			Race:     normalizeCategory(rec.VicRace),
		},
		Geo: Geo{
			Lat: parseFloatOrZero(rec.Latitude),
			Lon: parseFloatOrZero(rec.Longitude),
		},
	}, nil
}

// parseOccurrence combines OCCUR_DATE and OCCUR_TIME into a single timestamp.
// The dataset carries NYC civil time with no zone marker; timestamps are kept
// in UTC so calendar fields are stable across host timezones. A missing time
// of day reads as midnight.
func parseOccurrence(date, timeOfDay string) (time.Time, error) {
	d, err := time.Parse(occurDateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse occur date %q: %w", date, err)
	}

	timeOfDay = strings.TrimSpace(timeOfDay)
	if timeOfDay == "" {
		return d, nil
	}

	tod, err := time.Parse(occurTimeLayout, timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse occur time %q: %w", timeOfDay, err)
	}

	return time.Date(
		d.Year(), d.Month(), d.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC,
	), nil
}

// parseMurderFlag reads STATISTICAL_MURDER_FLAG across dataset vintages.
// Unrecognized values read as false.
func parseMurderFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "Y", "YES", "1":
		return true
	default:
		return false
	}
}

// normalizeCategory trims a demographic value and collapses the dataset's
// null tokens to the empty string.
func normalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := nullTokens[strings.ToUpper(s)]; ok {
		return ""
	}
	return s
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
// Coordinates are informational pass-through; a blank or malformed value is
// not grounds to reject the row.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// generateID produces a deterministic ID from the row's identifying fields.
// INCIDENT_KEY repeats across rows for multi-victim incidents, so the victim
// demographic columns join the hash input. Reprocessing the same row yields
// the same ID, which keeps downstream sink writes idempotent.
func generateID(rec RawRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		strings.TrimSpace(rec.IncidentKey),
		strings.TrimSpace(rec.OccurDate),
		strings.TrimSpace(rec.OccurTime),
		strings.TrimSpace(rec.Borough),
		strings.TrimSpace(rec.Precinct),
		strings.TrimSpace(rec.VicAgeGroup),
		strings.TrimSpace(rec.VicSex),
		strings.TrimSpace(rec.VicRace),
	)
	hash := sha256.Sum256([]byte(input))
	return "incident-" + hex.EncodeToString(hash[:8])
}
