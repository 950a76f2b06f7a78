package models

import (
	"encoding/json"
	"strings"
)

// Flag is a boolean that also accepts the loose spellings found in
// hand-edited store files ("sim", "true", 1, ...).
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = Flag(t)
	case float64:
		*f = t != 0
	case string:
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "TRUE", "SIM", "S", "1", "YES", "Y", "X":
			*f = true
		default:
			*f = false
		}
	default:
		*f = false
	}
	return nil
}
