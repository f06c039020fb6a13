package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ExtractText turns a request body into the line to store.
//
// The body must be a JSON object. A non-empty string in "transcript" is used
// as-is. When the field is missing or falsy (null, "", false, 0, [], {}) the
// whole body is stored in its compact JSON form instead. That rendering is
// always JSON text, never a language-specific map representation.
//
// Bodies that are not valid UTF-8 are rejected rather than repaired, so the
// daily file only ever holds the exact text that was sent.
func ExtractText(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", decodeErr("decode body", errors.New("empty request body"))
	}
	if !utf8.Valid(body) {
		return "", decodeErr("decode body", errors.New("body is not valid UTF-8"))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", decodeErr("decode body", err)
	}
	if fields == nil {
		// literal null
		return "", decodeErr("decode body", errors.New("body must be a JSON object"))
	}

	if raw, ok := fields["transcript"]; ok && !falsy(raw) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", decodeErr("decode transcript", fmt.Errorf("transcript must be a string"))
		}
		return text, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return "", decodeErr("render body", err)
	}
	return buf.String(), nil
}

func falsy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "null", `""`, "false", "[]", "{}":
		return true
	}
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && f == 0 {
		return true
	}
	return false
}
