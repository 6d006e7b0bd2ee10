package phlex

import "context"

// Source is the shape a user-supplied data source implements. A source
// may be push-shaped or pull-shaped; phlex unifies both into a single
// push-shaped interface the Driver calls repeatedly: Next is handed the
// Driver so it can Yield zero or more stores per call, and reports
// whether it has more work left. PullSource adapts the simpler
// single-store-per-call shape on top of this one via AsSource.
type Source interface {
	// Next is called repeatedly until it returns more=false or an error.
	Next(ctx context.Context, driver *Driver) (more bool, err error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, driver *Driver) (bool, error)

func (f SourceFunc) Next(ctx context.Context, driver *Driver) (bool, error) { return f(ctx, driver) }

// PullSource is the simpler of the two source shapes: one store per
// call instead of being handed a Driver to push into.
type PullSource interface {
	Next() (*Store, bool, error)
}

// PullSourceFunc adapts a plain function to PullSource.
type PullSourceFunc func() (*Store, bool, error)

func (f PullSourceFunc) Next() (*Store, bool, error) { return f() }

// AsSource adapts a PullSource to Source, so the Driver's loop never has
// to know which shape the original source implementation chose.
func AsSource(p PullSource) Source {
	return SourceFunc(func(ctx context.Context, driver *Driver) (bool, error) {
		store, ok, err := p.Next()
		if err != nil || !ok {
			return false, err
		}
		if err := driver.Yield(ctx, store); err != nil {
			return false, err
		}
		return true, nil
	})
}
