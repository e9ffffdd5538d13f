package statsgen

import (
	"errors"
	"fmt"
)

// ErrCoercion is returned (wrapped in a *CoercionError) when a stat value
// cannot be turned into the number its type requires
var ErrCoercion = errors.New("stat coercion failed")

// CoercionError identifies the stat and field that failed to coerce
type CoercionError struct {
	Stat  string // stat name
	Type  string // int, float, avgrate
	Field string // default, global or min
	Value string
}

func (e *CoercionError) Error() string {
	if e.Field == "default" && e.Type == "int" {
		return fmt.Sprintf("stat %q: default %q is not a number and no min is set", e.Stat, e.Value)
	}
	return fmt.Sprintf("stat %q: cannot coerce %s %q to %s", e.Stat, e.Field, e.Value, e.Type)
}

func (e *CoercionError) Unwrap() error {
	return ErrCoercion
}
