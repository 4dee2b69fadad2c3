package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Numeric constrains the numeric rule helpers.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Required validates that a string is not empty after trimming.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

// MaxLen validates that a string does not exceed max characters.
func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= max },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)},
	}
}

// Min validates that a numeric value is greater than or equal to min.
func Min[T Numeric](field string, value, min T) Rule {
	return Rule{
		Check: func() bool { return value >= min },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at least %v", min)},
	}
}

// Max validates that a numeric value is less than or equal to max.
func Max[T Numeric](field string, value, max T) Rule {
	return Rule{
		Check: func() bool { return value <= max },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %v", max)},
	}
}

// Positive validates that a numeric value is strictly greater than zero.
func Positive[T Numeric](field string, value T) Rule {
	var zero T
	return Rule{
		Check: func() bool { return value > zero },
		Error: ValidationError{Field: field, Message: "must be greater than zero"},
	}
}

// OneOf validates that a value is one of the allowed choices.
func OneOf[T comparable](field string, value T, allowed ...T) Rule {
	return Rule{
		Check: func() bool {
			for _, a := range allowed {
				if value == a {
					return true
				}
			}
			return false
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v", allowed)},
	}
}

// Before validates that one timestamp is strictly before another.
func Before(field string, value, other time.Time) Rule {
	return Rule{
		Check: func() bool { return value.Before(other) },
		Error: ValidationError{Field: field, Message: "must be before the end date"},
	}
}

// NotPast validates that a timestamp is not in the past.
func NotPast(field string, value time.Time) Rule {
	return Rule{
		Check: func() bool { return !value.Before(time.Now()) },
		Error: ValidationError{Field: field, Message: "must not be in the past"},
	}
}

// emailRegex is intentionally permissive; deliverability is decided by the
// email transport, not by this check.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email validates a plausible email address format.
func Email(field, value string) Rule {
	return Rule{
		Check: func() bool { return emailRegex.MatchString(value) },
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}
