package guidance

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Recyclability is the tagged form of the backend's `recyclable` field,
// which arrives as true, false or the string "special".
type Recyclability int

const (
	Unknown Recyclability = iota
	Recyclable
	NotRecyclable
	SpecialDisposal
)

func (r Recyclability) String() string {
	switch r {
	case Recyclable:
		return "recyclable"
	case NotRecyclable:
		return "not_recyclable"
	case SpecialDisposal:
		return "special"
	default:
		return "unknown"
	}
}

// UnmarshalJSON accepts booleans, "special", and the string forms of booleans.
// Anything else decodes as Unknown rather than failing the whole payload.
func (r *Recyclability) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Unknown
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*r = Recyclable
		} else {
			*r = NotRecyclable
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "special":
			*r = SpecialDisposal
		case "true", "yes", "recyclable":
			*r = Recyclable
		case "false", "no", "not_recyclable":
			*r = NotRecyclable
		default:
			*r = Unknown
		}
		return nil
	}
	*r = Unknown
	return nil
}

// MarshalJSON writes the backend's wire shape back out.
func (r Recyclability) MarshalJSON() ([]byte, error) {
	switch r {
	case Recyclable:
		return []byte("true"), nil
	case NotRecyclable:
		return []byte("false"), nil
	case SpecialDisposal:
		return []byte(`"special"`), nil
	default:
		return []byte("null"), nil
	}
}

// Display is what a result badge shows for a recyclability value.
type Display struct {
	Status string `json:"status"`
	Color  string `json:"color"` // green | red | yellow | gray
}

// Display maps every variant to its badge.
func (r Recyclability) Display() Display {
	switch r {
	case Recyclable:
		return Display{Status: "Recyclable", Color: "green"}
	case NotRecyclable:
		return Display{Status: "Not Recyclable", Color: "red"}
	case SpecialDisposal:
		return Display{Status: "Special Disposal", Color: "yellow"}
	default:
		return Display{Status: "Unknown", Color: "gray"}
	}
}
