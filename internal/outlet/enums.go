package outlet

import "strings"

type Type string

const (
	TypeDepot  Type = "DEPOT"
	TypeMixed  Type = "MIXED"
	TypeRetail Type = "RETAIL"
)

// ParseType falls back to DEPOT for unknown partner values.
func ParseType(s string) Type {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeDepot, TypeMixed, TypeRetail:
		return t
	default:
		return TypeDepot
	}
}

type Visibility string

const (
	Visible Visibility = "VISIBLE"
	Hidden  Visibility = "HIDDEN"
)

// ParseVisibility falls back to HIDDEN for unknown partner values.
func ParseVisibility(s string) Visibility {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case Visible, Hidden:
		return v
	default:
		return Hidden
	}
}

// Weekday follows the partner's Monday-first numbering (1..7). Zero is unset.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

func (d Weekday) String() string {
	if !d.Valid() {
		return ""
	}
	return weekdayNames[d]
}

// ParseWeekday returns 0 for unknown names.
func ParseWeekday(s string) Weekday {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i := Monday; i <= Sunday; i++ {
		if weekdayNames[i] == s {
			return i
		}
	}
	return 0
}
