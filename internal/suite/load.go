package suite

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// LoadAll reads every id under root in parallel into a fresh registry.
// An unreadable source aborts the load; malformed directives do not.
func LoadAll(ctx context.Context, root string, ids []string, jobs int) (*Registry, error) {
	reg := NewRegistry()
	if len(ids) == 0 {
		return reg, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(ids)))
	for _, id := range ids {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			tc, err := Load(root, id)
			if err != nil {
				return err
			}
			reg.Add(tc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reg, nil
}
