// Package collector runs category serialization on the local host.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
)

// Result is the outcome of one category.
type Result struct {
	ID       category.ID
	Name     string
	Payload  []byte
	Err      error
	Duration time.Duration
}

// Options tune a collection run.
type Options struct {
	// Concurrency bounds the goroutines; zero runs one per category.
	Concurrency int

	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

// Collect serializes every category and returns one result per category in
// input order. A failing category never affects the others.
//
// Serialize cannot be interrupted. Once ctx is done, categories that have
// not started yet report ctx.Err() instead of running.
func Collect(ctx context.Context, cats []category.Category, opts Options) []Result {
	results := make([]Result, len(cats))
	if len(cats) == 0 {
		return results
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("sysinfo/collector")
	}
	limit := opts.Concurrency
	if limit <= 0 || limit > len(cats) {
		limit = len(cats)
	}

	p := pool.New().WithMaxGoroutines(limit)
	for i, c := range cats {
		p.Go(func() {
			results[i] = collectOne(ctx, tracer, c)
		})
	}
	p.Wait()
	return results
}

func collectOne(ctx context.Context, tracer trace.Tracer, c category.Category) (res Result) {
	res = Result{ID: c.ID(), Name: c.Name()}

	_, span := tracer.Start(ctx, "collect "+c.Name(),
		trace.WithAttributes(attribute.String("category.id", string(c.ID()))))
	defer span.End()

	if err := ctx.Err(); err != nil {
		res.Err = err
		span.SetStatus(codes.Error, err.Error())
		return res
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Payload = nil
			res.Err = fmt.Errorf("serialize %s: panic: %v", c.Name(), r)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		res.Duration = time.Since(start)
	}()

	res.Payload, res.Err = c.Serialize()
	if res.Err != nil {
		res.Payload = nil
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		zap.L().Warn("category collection failed",
			zap.String("category", c.Name()),
			zap.String("id", string(c.ID())),
			zap.Error(res.Err))
		return res
	}
	span.SetAttributes(attribute.Int("payload.bytes", len(res.Payload)))
	return res
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Join folds the per-category errors into one, or nil when all succeeded.
func Join(results []Result) error {
	var errs []error
	for _, r := range Failed(results) {
		errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
	}
	return errors.Join(errs...)
}
