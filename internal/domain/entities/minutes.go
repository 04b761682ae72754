package entities

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxMinutes caps a single category value.
const MaxMinutes = math.MaxInt32

// Minutes is a non-negative minute count. Decoding never fails: anything
// that is not a usable number becomes zero.
type Minutes int

// ParseMinutes reads the leading integer of s the way a lenient form parser
// does ("30", " 45min", "12.9" -> 12). Empty, non-numeric and negative input
// yields zero.
func ParseMinutes(s string) Minutes {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 || negative {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n > MaxMinutes {
		return MaxMinutes
	}
	return Minutes(n)
}

func minutesFromFloat(f float64) Minutes {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > MaxMinutes {
		return MaxMinutes
	}
	return Minutes(math.Trunc(f))
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (m *Minutes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*m = 0
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*m = 0
			return nil
		}
		*m = ParseMinutes(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			*m = 0
			return nil
		}
		*m = minutesFromFloat(f)
	default:
		*m = 0
	}
	return nil
}

// UnmarshalParam implements echo.BindUnmarshaler for form and query values.
func (m *Minutes) UnmarshalParam(param string) error {
	*m = ParseMinutes(param)
	return nil
}

// timestampLayouts are tried in order when reading hand-edited timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// UnmarshalJSON reads an entry leniently. A non-string date keeps its JSON
// text ("20240101" for a number), and a timestamp that cannot be parsed reads
// as the zero time. Numeric timestamps are milliseconds since the epoch.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date      json.RawMessage `json:"date"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var tally Tally
	if err := json.Unmarshal(data, &tally); err != nil {
		return err
	}

	*e = Entry{
		Date:      lenientString(raw.Date),
		Tally:     tally,
		Timestamp: lenientTime(raw.Timestamp),
	}
	return nil
}

func lenientString(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ""
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return s
		}
	}
	return string(data)
}

func lenientTime(data json.RawMessage) time.Time {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return time.Time{}
	}
	if data[0] != '"' {
		var ms float64
		if err := json.Unmarshal(data, &ms); err == nil && !math.IsNaN(ms) && !math.IsInf(ms, 0) {
			return time.UnixMilli(int64(ms)).UTC()
		}
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
