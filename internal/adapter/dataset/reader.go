// Package dataset reads the NYPD shooting incident CSV from a local file or
// the NYC Open Data export endpoint.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/shooting-data-etl/internal/domain"
)

// Column headers consumed from the export. Names are matched exactly; column
// order varies across dataset vintages, so position is never assumed.
const (
	colIncidentKey  = "INCIDENT_KEY"
	colOccurDate    = "OCCUR_DATE"
	colOccurTime    = "OCCUR_TIME"
	colBorough      = "BORO"
	colPrecinct     = "PRECINCT"
	colMurderFlag   = "STATISTICAL_MURDER_FLAG"
	colPerpAgeGroup = "PERP_AGE_GROUP"
	colPerpSex      = "PERP_SEX"
	colPerpRace     = "PERP_RACE"
	colVicAgeGroup  = "VIC_AGE_GROUP"
	colVicSex       = "VIC_SEX"
	colVicRace      = "VIC_RACE"
	colLatitude     = "Latitude"
	colLongitude    = "Longitude"
)

// requiredColumns must appear in the header for the file to parse at all.
// The demographic and coordinate columns are optional: absent ones read as
// empty values, which the parser treats like the dataset's null tokens.
var requiredColumns = []string{
	colIncidentKey, colOccurDate, colOccurTime, colBorough, colPrecinct,
}

// ParseCSV maps every data row of r into a RawRecord by header name.
// Short rows yield empty values for the missing trailing columns rather than
// aborting the whole file.
func ParseCSV(r io.Reader) ([]domain.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // vintages differ; row width is handled per cell

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("dataset header missing column %s", col)
		}
	}

	var records []domain.RawRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row: %w", err)
		}

		records = append(records, domain.RawRecord{
			IncidentKey:  get(row, colIdx, colIncidentKey),
			OccurDate:    get(row, colIdx, colOccurDate),
			OccurTime:    get(row, colIdx, colOccurTime),
			Borough:      get(row, colIdx, colBorough),
			Precinct:     get(row, colIdx, colPrecinct),
			MurderFlag:   get(row, colIdx, colMurderFlag),
			PerpAgeGroup: get(row, colIdx, colPerpAgeGroup),
			PerpSex:      get(row, colIdx, colPerpSex),
			PerpRace:     get(row, colIdx, colPerpRace),
			VicAgeGroup:  get(row, colIdx, colVicAgeGroup),
			VicSex:       get(row, colIdx, colVicSex),
			VicRace:      get(row, colIdx, colVicRace),
			Latitude:     get(row, colIdx, colLatitude),
			Longitude:    get(row, colIdx, colLongitude),
		})
	}
	return records, nil
}

// get returns the named column's value, or "" when the column is absent from
// this vintage or the row is short.
func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
