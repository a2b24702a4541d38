package interfaces

import "context"

// Runnable is a long-lived component driven by lib.Task, like the round
// orchestrator. Run blocks until the context is cancelled or the
// component fails.
type Runnable interface {
	Run(ctx context.Context) error
}
