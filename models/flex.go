package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonDigitRegexp = regexp.MustCompile(`[^0-9]`)
	nonMoneyRegexp = regexp.MustCompile(`[^0-9.\-]`)
)

// Flex is a loosely-typed scalar from upstream JSON: a number, a numeric or
// currency-formatted string, or null. It keeps the raw text; the typed
// accessors below are the only place that text gets interpreted.
type Flex struct {
	raw      string
	set      bool
	isString bool
}

// FlexNumber builds a Flex holding a JSON number.
func FlexNumber(v float64) Flex {
	return Flex{raw: strconv.FormatFloat(v, 'f', -1, 64), set: true}
}

// FlexString builds a Flex holding a JSON string.
func FlexString(s string) Flex {
	return Flex{raw: s, set: true, isString: true}
}

// UnmarshalJSON accepts numbers, strings, booleans and null. Objects and
// arrays are rejected so a wrongly-shaped record fails at decode time.
func (f *Flex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = Flex{}

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case data[0] == '{' || data[0] == '[':
		return fmt.Errorf("%w: expected scalar, got %s", ErrMalformedRecord, data[:1])
	default:
		*f = Flex{raw: string(data), set: true}
		return nil
	}
}

// MarshalJSON writes the value back in the form it was read.
func (f Flex) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	if f.isString {
		return json.Marshal(f.raw)
	}
	return []byte(f.raw), nil
}

// IsSet reports whether a non-null value was present.
func (f Flex) IsSet() bool { return f.set }

// String returns the raw text.
func (f Flex) String() string { return f.raw }

// Float parses the value as a plain number.
func (f Flex) Float() (float64, bool) {
	if !f.set {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
	if err != nil || !isFinite(v) {
		return 0, false
	}
	return v, true
}

// FloatOr returns Float or fallback when the value is missing or unparseable.
func (f Flex) FloatOr(fallback float64) float64 {
	if v, ok := f.Float(); ok {
		return v
	}
	return fallback
}

// Int truncates numbers and strips every non-digit character from strings,
// so "1,450 sq ft" becomes 1450. Missing or digit-free values are 0.
func (f Flex) Int() int {
	if !f.set {
		return 0
	}
	if !f.isString {
		v, ok := f.Float()
		if !ok {
			return 0
		}
		return int(v)
	}
	digits := nonDigitRegexp.ReplaceAllString(f.raw, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// Money parses currency-formatted strings such as "$450,000" or "USD 1,200.50".
func (f Flex) Money() (float64, bool) {
	if !f.set {
		return 0, false
	}
	if !f.isString {
		return f.Float()
	}
	cleaned := nonMoneyRegexp.ReplaceAllString(f.raw, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || !isFinite(v) {
		return 0, false
	}
	return v, true
}

// isFinite rejects the NaN and Inf spellings ParseFloat accepts.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
