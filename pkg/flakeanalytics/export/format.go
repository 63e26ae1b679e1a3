package export

import (
	"math"
	"strconv"
	"time"
)

const (
	dateLayout = "2006-01-02"

	csvInfinity  = "inf"
	jsonInfinity = "Infinity"
)

func round6(value float64) float64 {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return value
	}
	return math.Round(value*1e6) / 1e6
}

func formatFloat(value float64) string {
	switch {
	case math.IsInf(value, 1):
		return csvInfinity
	case math.IsInf(value, -1):
		return "-" + csvInfinity
	}
	return strconv.FormatFloat(round6(value), 'f', -1, 64)
}

func formatOptionalFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return formatFloat(*value)
}

func formatBool(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

// jsonFloat encodes non-finite values as strings, which encoding/json refuses
// to emit as numbers.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	value := float64(f)
	switch {
	case math.IsInf(value, 1):
		return []byte(strconv.Quote(jsonInfinity)), nil
	case math.IsInf(value, -1):
		return []byte(strconv.Quote("-" + jsonInfinity)), nil
	case math.IsNaN(value):
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(value, 'f', -1, 64)), nil
}

func optionalJSONFloat(value *float64) *jsonFloat {
	if value == nil {
		return nil
	}
	f := jsonFloat(*value)
	return &f
}
