package kagami

import (
	"fmt"
	"strconv"
)

// Snowflake is the 64-bit unsigned identifier used by the platform for every
// addressable entity. A zero Snowflake is never a valid identity.
type Snowflake uint64

// String renders the identifier in its canonical decimal wire form.
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// SnowflakeID returns the identifier itself so Snowflake satisfies Resolvable.
func (s Snowflake) SnowflakeID() Snowflake {
	return s
}

// Resolvable is anything that exposes a canonical entity identifier.
//
// Entities implement it so cache operations accept either a raw identifier or
// a previously resolved entity.
type Resolvable interface {
	SnowflakeID() Snowflake
}

// ParseSnowflake parses the decimal wire form of an identifier.
func ParseSnowflake(raw string) (Snowflake, error) {
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse snowflake %q: %w", raw, ErrUnresolvableID)
	}

	return Snowflake(parsed), nil
}

// ResolveID coerces a value to its canonical identifier.
//
// It accepts a Snowflake, any Resolvable, an unsigned or signed integer, or a
// decimal string, and fails fast with ErrUnresolvableID on anything else.
func ResolveID(value any) (Snowflake, error) {
	switch typed := value.(type) {
	case Snowflake:
		return typed, nil
	case Resolvable:
		return typed.SnowflakeID(), nil
	case uint64:
		return Snowflake(typed), nil
	case int64:
		if typed < 0 {
			return 0, fmt.Errorf("resolve id %d: negative identifier: %w", typed, ErrUnresolvableID)
		}
		return Snowflake(typed), nil
	case int:
		if typed < 0 {
			return 0, fmt.Errorf("resolve id %d: negative identifier: %w", typed, ErrUnresolvableID)
		}
		return Snowflake(typed), nil
	case string:
		return ParseSnowflake(typed)
	default:
		return 0, fmt.Errorf("resolve id: unsupported type %T: %w", value, ErrUnresolvableID)
	}
}
