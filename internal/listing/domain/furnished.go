package domain

import (
	"encoding/json"
	"fmt"
)

// Furnished holds the furnished state of a listing. Stored records carry either a
// boolean or a free-form string ("semi", "partly", ...), so the value keeps
// whichever kind it was given.
type Furnished struct {
	text   string
	flag   bool
	isFlag bool
}

func FurnishedFlag(b bool) Furnished { return Furnished{flag: b, isFlag: true} }

func FurnishedText(s string) Furnished { return Furnished{text: s} }

// ParseFurnished maps the literals "true" and "false" to booleans and keeps any
// other input as text.
func ParseFurnished(s string) Furnished {
	switch s {
	case "true":
		return FurnishedFlag(true)
	case "false":
		return FurnishedFlag(false)
	default:
		return FurnishedText(s)
	}
}

// FurnishedFromValue converts a decoded document value (bool or string).
func FurnishedFromValue(v interface{}) (Furnished, error) {
	switch t := v.(type) {
	case nil:
		return Furnished{}, nil
	case bool:
		return FurnishedFlag(t), nil
	case string:
		return FurnishedText(t), nil
	default:
		return Furnished{}, fmt.Errorf("unsupported furnished value of type %T", v)
	}
}

func (f Furnished) IsZero() bool { return !f.isFlag && f.text == "" }

// IsFlag reports whether the value is a boolean.
func (f Furnished) IsFlag() bool { return f.isFlag }

// Value returns the native bool or string.
func (f Furnished) Value() interface{} {
	if f.isFlag {
		return f.flag
	}
	return f.text
}

// Equal compares kind and value: FurnishedFlag(true) does not equal FurnishedText("true").
func (f Furnished) Equal(o Furnished) bool {
	if f.isFlag != o.isFlag {
		return false
	}
	if f.isFlag {
		return f.flag == o.flag
	}
	return f.text == o.text
}

func (f Furnished) String() string {
	return fmt.Sprint(f.Value())
}

func (f Furnished) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value())
}

func (f *Furnished) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := FurnishedFromValue(v)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
