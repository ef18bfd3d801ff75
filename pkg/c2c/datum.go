package c2c

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/c2c/pkg/types"
)

// defaultQuerySpan is used when a datum query has no start date.
const defaultQuerySpan = time.Hour

// queryRange resolves filter into a concrete [start, end) range. A zero end
// means now and a zero start means defaultQuerySpan before end. Ranges longer
// than maxSpan are clamped and the remainder is returned as the next filter.
func queryRange(clock Clock, filter types.DatumQueryFilter, maxSpan time.Duration) (start, end time.Time, next *types.DatumQueryFilter) {
	end = filter.EndDate
	if end.IsZero() {
		end = clock.Now()
	}
	start = filter.StartDate
	if start.IsZero() {
		start = end.Add(-defaultQuerySpan)
	}
	if maxSpan > 0 && end.Sub(start) > maxSpan {
		clamped := start.Add(maxSpan)
		next = &types.DatumQueryFilter{StartDate: clamped, EndDate: end}
		end = clamped
	}
	return start, end, next
}

// streamProperty is an enabled stream property with its value reference
// resolved for one placeholder set.
type streamProperty struct {
	types.DatumStreamProperty
	Reference string
}

// resolveProperties returns the enabled properties of stream with their
// value references resolved against set.
func resolveProperties(stream types.DatumStreamConfiguration, set map[string]any) []streamProperty {
	var props []streamProperty
	for _, p := range stream.Properties {
		if !p.Enabled || p.PropertyName == "" || p.ValueReference == "" {
			continue
		}
		props = append(props, streamProperty{
			DatumStreamProperty: p,
			Reference:           ResolveTemplate(p.ValueReference, set),
		})
	}
	return props
}

// lastSegment returns the part of ref after its final "/".
func lastSegment(ref string) string {
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

type datumKey struct {
	sourceID string
	ts       int64
}

// datumSet collects property values into one datum per source and timestamp.
type datumSet struct {
	objectID int64
	datum    map[datumKey]*types.Datum
}

func newDatumSet(objectID int64) *datumSet {
	return &datumSet{
		objectID: objectID,
		datum:    make(map[datumKey]*types.Datum),
	}
}

// add applies value to prop on the datum for sourceID at ts. Values that
// cannot be converted to the property type are ignored.
func (s *datumSet) add(sourceID string, ts time.Time, prop streamProperty, value any) {
	key := datumKey{sourceID: sourceID, ts: ts.UnixNano()}
	d, ok := s.datum[key]
	if !ok {
		d = &types.Datum{
			ObjectID:  s.objectID,
			SourceID:  sourceID,
			Timestamp: ts,
		}
	}
	if !applyProperty(d, prop.DatumStreamProperty, value) {
		return
	}
	s.datum[key] = d
}

// results returns the collected datum ordered by timestamp and source ID.
func (s *datumSet) results() []types.Datum {
	out := make([]types.Datum, 0, len(s.datum))
	for _, d := range s.datum {
		if d.IsEmpty() {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

func applyProperty(d *types.Datum, p types.DatumStreamProperty, value any) bool {
	if value == nil {
		return false
	}
	switch p.PropertyType {
	case types.PropertyTypeStatus:
		if d.Status == nil {
			d.Status = make(map[string]string)
		}
		d.Status[p.PropertyName] = fmt.Sprint(value)
		return true
	case types.PropertyTypeAccumulating, types.PropertyTypeInstantaneous:
		f, ok := toFloat(value)
		if !ok {
			return false
		}
		if p.Multiplier != 0 {
			f *= p.Multiplier
		}
		if p.PropertyType == types.PropertyTypeAccumulating {
			if d.Accumulating == nil {
				d.Accumulating = make(map[string]float64)
			}
			d.Accumulating[p.PropertyName] = f
		} else {
			if d.Instantaneous == nil {
				d.Instantaneous = make(map[string]float64)
			}
			d.Instantaneous[p.PropertyName] = f
		}
		return true
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
