package walkers

import (
	"context"

	"github.com/outofforest/pagewalk"
	"github.com/outofforest/pagewalk/types"
	"github.com/outofforest/parallel"
)

// RunParallel runs independent read-only walks over the same hierarchy
// concurrently. Read-only walks only ever take shared access to the tables,
// so running them in parallel is safe as long as every walker instance stays
// single-owner: each walk gets its own goroutine and must get its own walker.
func RunParallel(ctx context.Context, pml4 *types.Table, walks map[string]*pagewalk.Walker) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for name, w := range walks {
			spawn(name, parallel.Continue, func(_ context.Context) error {
				return w.Run(pml4)
			})
		}
		return nil
	})
}
