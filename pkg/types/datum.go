package types

import "time"

// Datum is a normalized, timestamped set of measurements for one source.
type Datum struct {
	ObjectID      int64              `json:"objectId"`
	SourceID      string             `json:"sourceId"`
	Timestamp     time.Time          `json:"timestamp"`
	Instantaneous map[string]float64 `json:"i,omitempty"`
	Accumulating  map[string]float64 `json:"a,omitempty"`
	Status        map[string]string  `json:"s,omitempty"`
}

// IsEmpty returns true if the datum has no properties.
func (d Datum) IsEmpty() bool {
	return len(d.Instantaneous) == 0 && len(d.Accumulating) == 0 && len(d.Status) == 0
}

// DatumQueryFilter limits a datum query.
type DatumQueryFilter struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// DatumQueryResult is the result of a datum query. NextQueryFilter is set when
// the requested range was longer than a provider can serve in one query.
type DatumQueryResult struct {
	Results         []Datum           `json:"results"`
	NextQueryFilter *DatumQueryFilter `json:"nextQueryFilter,omitempty"`
}

// DataValue is one node in a provider's browsable hierarchy of sites,
// devices, and values.
type DataValue struct {
	Name        string         `json:"name"`
	Reference   string         `json:"reference"`
	Identifiers []string       `json:"identifiers"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Children    []DataValue    `json:"children,omitempty"`
}
