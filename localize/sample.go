package localize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseSample decodes one sensor sample. Two encodings are accepted:
//
//	{"distance": 812, "confidence": 63}
//	812,63
//
// Distance is in millimetres. The text form may omit confidence, in which
// case full confidence is assumed.
func ParseSample(payload []byte) (RawMeasurement, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return RawMeasurement{}, fmt.Errorf("empty sample")
	}

	if strings.HasPrefix(text, "{") {
		var fields struct {
			Distance   *float64 `json:"distance"`
			Confidence *float64 `json:"confidence"`
		}
		if err := json.Unmarshal([]byte(text), &fields); err != nil {
			return RawMeasurement{}, fmt.Errorf("failed to unmarshal sample: %w", err)
		}
		if fields.Distance == nil {
			return RawMeasurement{}, fmt.Errorf("sample has no distance")
		}
		raw := RawMeasurement{DistanceMM: *fields.Distance, Confidence: ConfidenceMax}
		if fields.Confidence != nil {
			raw.Confidence = *fields.Confidence
		}
		return raw, nil
	}

	segments := strings.Split(text, ",")
	if len(segments) > 2 {
		return RawMeasurement{}, fmt.Errorf("expected distance[,confidence], got %d fields", len(segments))
	}

	distance, err := strconv.ParseFloat(strings.TrimSpace(segments[0]), 64)
	if err != nil {
		return RawMeasurement{}, fmt.Errorf("failed to parse distance: %w", err)
	}
	raw := RawMeasurement{DistanceMM: distance, Confidence: ConfidenceMax}

	if len(segments) == 2 {
		confidence, err := strconv.ParseFloat(strings.TrimSpace(segments[1]), 64)
		if err != nil {
			return RawMeasurement{}, fmt.Errorf("failed to parse confidence: %w", err)
		}
		raw.Confidence = confidence
	}

	return raw, nil
}
