package census

import "github.com/couchcryptid/shooting-data-etl/internal/domain"

// DefaultSnapshots returns the decennial census populations for the five
// boroughs (2000, 2010, 2020), per the NYC Department of City Planning
// published counts. These are fixed input constants; no census API is
// consulted at runtime. Borough boundary changes between censuses are not
// modeled.
func DefaultSnapshots() map[domain.Borough][]Anchor {
	return map[domain.Borough][]Anchor{
		domain.Bronx: {
			{Year: 2000, Population: 1332650},
			{Year: 2010, Population: 1385108},
			{Year: 2020, Population: 1472654},
		},
		domain.Brooklyn: {
			{Year: 2000, Population: 2465326},
			{Year: 2010, Population: 2504700},
			{Year: 2020, Population: 2736074},
		},
		domain.Manhattan: {
			{Year: 2000, Population: 1537195},
			{Year: 2010, Population: 1585873},
			{Year: 2020, Population: 1694251},
		},
		domain.Queens: {
			{Year: 2000, Population: 2229379},
			{Year: 2010, Population: 2230722},
			{Year: 2020, Population: 2405464},
		},
		domain.StatenIsland: {
			{Year: 2000, Population: 443728},
			{Year: 2010, Population: 468730},
			{Year: 2020, Population: 495747},
		},
	}
}
