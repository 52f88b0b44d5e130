package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// bench drives concurrent begin/commit (or abort) pairs against the ledger.
func (c *cli) bench(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(c.out)
	total := fs.Int("n", 1000, "number of transactions")
	workers := fs.Int("workers", 4, "concurrent goroutines")
	perSec := fs.Float64("rate", 0, "maximum transactions per second, 0 for unlimited")
	abortEvery := fs.Int("abort-every", 10, "abort every n-th xid instead of committing it, 0 for never")
	if err := fs.Parse(args); err != nil {
		return usagef("bench: %v", err)
	}
	if *total <= 0 || *workers <= 0 || *perSec < 0 || *abortEvery < 0 {
		return usagef("bench: -n and -workers must be positive, -rate and -abort-every not negative")
	}

	s, err := c.ledger()
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if *perSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(*perSec), 1)
	}

	var (
		issued  atomic.Int64
		aborted atomic.Int64
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := func(err error) {
		errOnce.Do(func() {
			runErr = err
			cancel()
		})
	}

	start := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for issued.Add(1) <= int64(*total) {
				if err := limiter.Wait(ctx); err != nil {
					stop(err)
					return
				}
				xid, err := s.Begin()
				if err != nil {
					stop(err)
					return
				}
				if *abortEvery > 0 && uint64(xid)%uint64(*abortEvery) == 0 {
					err = s.Abort(xid)
					aborted.Add(1)
				} else {
					err = s.Commit(xid)
				}
				if err != nil {
					stop(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if runErr != nil {
		return runErr
	}

	elapsed := time.Since(start)
	tps := float64(*total) / elapsed.Seconds()
	c.log.Info("Benchmark finished",
		zap.Int("transactions", *total),
		zap.Int("workers", *workers),
		zap.Duration("elapsed", elapsed),
		zap.Float64("txn_per_sec", tps))
	fmt.Fprintf(c.out, "%d transactions (%d aborted) in %s, %.0f txn/s, counter=%d\n",
		*total, aborted.Load(), elapsed.Round(time.Millisecond), tps, s.Counter())
	return nil
}
