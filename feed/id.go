package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID identifies users, posts and comments. Servers may send it either as a
// JSON string or as a JSON number.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*id = ""

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string

		err := json.Unmarshal(data, &s)
		if err != nil {
			return fmt.Errorf("failed to unmarshal id string: %w", err)
		}

		*id = ID(s)

		return nil
	}

	var n json.Number

	err := json.Unmarshal(data, &n)
	if err != nil {
		return fmt.Errorf("failed to unmarshal id number: %w", err)
	}

	*id = ID(n.String())

	return nil
}

// IDPtr returns a pointer to id, or nil for the zero id.
func IDPtr(id ID) *ID {
	if id.IsZero() {
		return nil
	}

	return &id
}
