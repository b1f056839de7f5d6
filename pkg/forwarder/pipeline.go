package forwarder

import (
	"context"

	"github.com/NotCoffee418/telem_cli/pkg/types"
	"golang.org/x/sync/errgroup"
)

// RunPipeline connects source to fwd through a queue of queueSize readings.
// The source keeps reading into the queue while a batch submission (and its
// retries) is in flight. Returns when the source is exhausted and the queue
// drained, or with the first stage error.
func RunPipeline(ctx context.Context, source Source, fwd *Forwarder, queueSize int) error {
	if queueSize < 1 {
		queueSize = 1
	}
	queue := make(chan types.Reading, queueSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		return source.Stream(gctx, queue)
	})
	g.Go(func() error {
		return fwd.Run(gctx, queue)
	})
	return g.Wait()
}
