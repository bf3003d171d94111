package broker

import (
	"github.com/goccy/go-json"
)

// encodePayload serializes a payload under the stream's conventional "data"
// field (spec §3: "payloads as a single JSON object under ... data").
func encodePayload(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": string(b)}, nil
}

// decodePayload extracts the "data" field from a raw stream entry's values
// and unmarshals it into v.
func decodePayload(values map[string]interface{}, v any) error {
	raw, _ := values["data"].(string)
	return json.Unmarshal([]byte(raw), v)
}

// Encode is the exported form of encodePayload, used by callers that need a
// handler-ready values map without a live broker append (http-mode handlers
// feeding a consumer's own processing path, and package tests).
func Encode(v any) (map[string]any, error) {
	return encodePayload(v)
}

// Decode is the exported form of decodePayload, used by service handlers
// (risk, analyst, executor, notifier) to unmarshal a consumed entry's
// payload into a concrete struct.
func Decode(values map[string]interface{}, v any) error {
	return decodePayload(values, v)
}

// decodeRaw returns the raw "data" JSON as a generic map, used by admin
// surfaces (DLQ listing) that don't know the concrete payload type.
func decodeRaw(values map[string]interface{}) (map[string]any, error) {
	raw, _ := values["data"].(string)
	out := map[string]any{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
