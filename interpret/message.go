package interpret

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FunctionAskForMoreInfo marks a reply that needs more input from the user.
const FunctionAskForMoreInfo = "askForMoreInfo"

// ResultID selects a sound and an animation. Ids are short strings such as "0" or "1".
type ResultID string

// ServerMessage is the data of a serverResponse event. Unknown fields are kept in Raw.
type ServerMessage struct {
	Function  string          `json:"nom_fonction,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	ResultID  json.RawMessage `json:"resultId,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

func ParseMessage(data []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerMessage{}, fmt.Errorf("parsing serverResponse: %w", err)
	}
	msg.Raw = append(json.RawMessage(nil), data...)
	return msg, nil
}

// Result returns the resultId field. Numbers are accepted and rendered in
// decimal; null, empty and other shapes count as absent.
func (m ServerMessage) Result() (ResultID, bool) {
	raw := bytes.TrimSpace(m.ResultID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", false
		}
		return ResultID(s), true
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return ResultID(n.String()), true
	}
	return "", false
}

func (m ServerMessage) IsClarification() bool {
	return m.Function == FunctionAskForMoreInfo
}

// FormatArguments renders clarification arguments for display. Strings are
// shown as is, lists are joined with spaces, objects become sorted
// "key: value" lines and anything else falls back to compact JSON.
func FormatArguments(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}

	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := scalar(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, k+": "+scalar(t[k]))
		}
		return strings.Join(lines, "\n")
	}
	return scalar(v)
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
