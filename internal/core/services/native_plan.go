package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// nativePlan is the decoded form of a native boot plan document.
type nativePlan struct {
	Instances    []map[string]any            `json:"instances"`
	Executables  map[string]executableGroup  `json:"executables"`
	Restrictions map[string]restrictionGroup `json:"restrictions"`
}

type executableGroup struct {
	ExecutableAndArguments []orderedObject `json:"executable_and_arguments"`
	Environment            orderedObject   `json:"environment"`
}

type restrictionGroup struct {
	Hosts []string `json:"hosts"`
}

type orderedField struct {
	Key   string
	Value json.RawMessage
}

// orderedObject is a JSON object that keeps its keys in document order.
type orderedObject []orderedField

func (o *orderedObject) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		*o = append(*o, orderedField{Key: key, Value: raw})
	}
	_, err = dec.Token()
	return err
}

// parseNativePlan decodes a JSON-with-comments boot plan.
func parseNativePlan(data []byte) (*nativePlan, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()

	var plan nativePlan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("parse boot plan: %w", err)
	}
	return &plan, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// argsOf accepts a list of arguments, a single argument, or nothing.
func argsOf(v any) []string {
	switch x := v.(type) {
	case nil:
		return []string{}
	case []any:
		args := make([]string, 0, len(x))
		for _, a := range x {
			args = append(args, valueText(a))
		}
		return args
	default:
		return []string{valueText(x)}
	}
}
