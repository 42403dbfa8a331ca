package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSONObject is returned when a response contains no brace delimited object.
var ErrNoJSONObject = errors.New("no json object in response")

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// GenerateSchema creates a JSON Schema from the given Go type.
// It uses reflection to inspect the type structure and generates
// a schema suitable for use with AI structured output.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// UnmarshalFlexible attempts to unmarshal JSON into the target with multiple fallback strategies.
// It first tries standard JSON unmarshaling, then handles double-encoded JSON strings,
// and finally attempts to repair malformed JSON before parsing.
//
// Example:
//
//	var result MyStruct
//	UnmarshalFlexible(`{"name": "test"}`, &result)           // standard JSON
//	UnmarshalFlexible(`"{\"name\": \"test\"}"`, &result)     // double-encoded
//	UnmarshalFlexible(`{name: "test"}`, &result)             // malformed (repaired)
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}

	if err := json.Unmarshal([]byte(repaired), out); err == nil {
		return nil
	}

	return fmt.Errorf(
		"unmarshal failed after repair: input=%s repaired=%s",
		input, repaired,
	)
}

// ExtractJSONObject returns the substring from the first '{' to the last '}'
// of s. Model output often wraps the object in prose or code fences.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// ParseJSONResponse extracts the brace delimited object from a model
// response and decodes it into out.
func ParseJSONResponse(response string, out any) error {
	obj, ok := ExtractJSONObject(response)
	if !ok {
		return ErrNoJSONObject
	}
	return UnmarshalFlexible(obj, out)
}

func roundTokensPerSecond(tokens int, durationMs int64) float32 {
	if durationMs <= 0 {
		return 0
	}
	tps := (float64(tokens) * 1000.0) / float64(durationMs)
	return float32(math.Round(tps*100) / 100)
}

// AddMetrics accumulates m into total and refreshes the throughput figure.
func AddMetrics(total ModelMetrics, m ModelMetrics) ModelMetrics {
	total.Requests++
	total.InputTokens += m.InputTokens
	total.OutputTokens += m.OutputTokens
	total.TotalTokens += m.TotalTokens
	total.DurationMs += m.DurationMs
	total.TokenPerSecond = roundTokensPerSecond(total.TotalTokens, total.DurationMs)
	return total
}
