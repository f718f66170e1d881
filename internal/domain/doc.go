// Package domain models NYPD shooting incident records.
//
// # Data Source
//
// Incidents come from the NYPD Shooting Incident Data (Historic) extract
// published on NYC Open Data (dataset 833y-fsy8): one row per victim of a
// shooting incident in New York City, 2006 onward, refreshed quarterly. The
// dataset adapter opens or downloads the CSV export and maps columns by header
// name before handing rows to [ParseIncident].
//
// # Dataset Conventions
//
// Date and time:
//
//	OCCUR_DATE is MM/DD/YYYY and OCCUR_TIME is HH:MM:SS in 24-hour notation,
//	NYC civil time with no zone marker. They combine into a single timestamp
//	kept in UTC so the derived calendar fields (year, month, day, weekday,
//	hour) do not depend on the host timezone. Calendar fields are computed
//	once at parse time and never recomputed.
//
// Boroughs:
//
//	The BORO column holds one of BRONX, BROOKLYN, MANHATTAN, QUEENS,
//	STATEN ISLAND, uppercase. [NormalizeBorough] uppercases and collapses
//	whitespace; a value outside the five-borough enumeration is kept as-is
//	and surfaces later as an enrichment lookup failure rather than being
//	dropped at parse time.
//
// Murder flag:
//
//	STATISTICAL_MURDER_FLAG marks shootings where the victim died. Current
//	exports use "true"/"false"; older vintages used "Y"/"N". Unrecognized
//	values read as false.
//
// Null tokens:
//
//	Missing demographic values appear as "", "(null)", "UNKNOWN", or "U"
//	depending on dataset vintage. All normalize to the empty string so
//	downstream consumers see a single missing-value sentinel.
//
// # ID Generation
//
// Incident IDs are deterministic SHA-256 hashes of the row's identifying
// fields. INCIDENT_KEY is not unique on its own (multi-victim incidents repeat
// it across rows), so victim demographics join the hash input. Deterministic
// IDs keep sink publishes idempotent across pipeline reruns. See [generateID].
package domain
