package lib

import "fmt"

// WrapError chains err under a package sentinel so callers match the
// sentinel with errors.Is while the cause stays in the message
func WrapError(sentinel error, err error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}
