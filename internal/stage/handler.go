package stage

import "context"

// Handler describes the contract the pipeline runner needs from each
// stage.
type Handler interface {
	// Prepare validates inputs and preconditions without side effects
	// on the output tree.
	Prepare(context.Context) error
	// Execute performs the stage's work.
	Execute(context.Context) error
	// HealthCheck reports whether the stage could run now.
	HealthCheck(context.Context) Health
}
