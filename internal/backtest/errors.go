package backtest

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks malformed or out-of-range engine arguments.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
