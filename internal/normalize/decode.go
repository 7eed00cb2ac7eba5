package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Decode parses a JSON payload into generic values, keeping numbers as json.Number
// so long numeric identifiers survive untouched.
func Decode(payload []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode payload: trailing data")
	}
	return value, nil
}
