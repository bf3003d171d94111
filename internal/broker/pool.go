package broker

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// RunPool runs each named subscription function concurrently inside a
// sourcegraph/conc WaitGroup and blocks until every one returns (normally
// only at shutdown). conc catches a panic inside any goroutine and
// re-raises it from Wait, where this function's recover absorbs it — a
// single handler panic is logged, not a crashed process (spec §5/§7:
// many independent tasks, absorb and resume).
func RunPool(ctx context.Context, log zerolog.Logger, fns map[string]func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("consumer pool panic recovered")
		}
	}()

	wg := conc.NewWaitGroup()
	for name, fn := range fns {
		name, fn := name, fn
		wg.Go(func() {
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("subscription", name).Msg("consumer stopped")
			}
		})
	}
	wg.Wait()
}
