package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Money is a decimal amount. The API renders decimals as JSON strings
// ("12.50") but accepts plain numbers, so both forms are decoded.
type Money float64

// UnmarshalJSON accepts a JSON number, a numeric string or null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		data = []byte(s)
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", data, err)
	}

	*m = Money(f)
	return nil
}

// String formats the amount with two decimal places.
func (m Money) String() string {
	return strconv.FormatFloat(float64(m), 'f', 2, 64)
}
