package stage

import (
	"context"

	"contentpipe/internal/item"
)

// Handler describes the contract the pipeline runner needs from each stage.
//
// Prepare validates an item without side effects and runs during dry runs.
// Execute performs the stage's work, mutating the item in place; the runner
// owns the stage transition and persistence.
type Handler interface {
	Prepare(context.Context, *item.Item) error
	Execute(context.Context, *item.Item) error
	HealthCheck(context.Context) Health
}
