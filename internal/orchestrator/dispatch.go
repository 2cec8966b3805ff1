package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/dusk-indust/consortium/internal/model"
	"golang.org/x/sync/errgroup"
)

// Invoker is the per-instance call the Dispatcher fans out. *model.Invoker
// satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, model string, instance int, prompt string, conv *model.Conversations) model.Response
}

// Compile-time check.
var _ Invoker = (*model.Invoker)(nil)

// Dispatcher runs one round: every instance of every model receives the
// same prompt in parallel, and Round returns only after all have finished.
type Dispatcher struct {
	inv        Invoker
	onProgress func(ProgressEvent)
	logger     *log.Logger
}

// NewDispatcher creates a Dispatcher that calls inv for each instance.
// onProgress is called synchronously from each goroutine; it may be nil.
func NewDispatcher(inv Invoker, onProgress func(ProgressEvent)) *Dispatcher {
	return &Dispatcher{
		inv:        inv,
		onProgress: onProgress,
		logger:     log.Default(),
	}
}

type slot struct {
	model    string
	instance int
}

// Round dispatches prompt to every (model, instance) pair in models and
// waits for all of them. The result has one entry per instance, ordered by
// model name and then instance number. A failing instance never cancels its
// siblings; its error is recorded in its Response.
func (d *Dispatcher) Round(ctx context.Context, round int, prompt string, models map[string]int, conv *model.Conversations) []model.Response {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	var slots []slot
	for _, name := range names {
		for i := 1; i <= models[name]; i++ {
			slots = append(slots, slot{model: name, instance: i})
		}
	}

	results := make([]model.Response, len(slots))
	// errgroup.WithContext would cancel siblings on the first error; a
	// round always waits for every instance.
	var g errgroup.Group

	for i, s := range slots {
		d.emit(ProgressEvent{Kind: KindInstance, Round: round, Model: s.model, Instance: s.instance, Status: ProgressPending})

		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Printf("WARNING: %s instance %d panicked: %v", s.model, s.instance, r)
					results[i] = model.Response{
						Model:    s.model,
						Instance: s.instance,
						Error:    fmt.Sprintf("panic: %v", r),
					}
					d.emit(ProgressEvent{Kind: KindInstance, Round: round, Model: s.model, Instance: s.instance, Status: ProgressFailed, Message: results[i].Error})
				}
			}()

			d.emit(ProgressEvent{Kind: KindInstance, Round: round, Model: s.model, Instance: s.instance, Status: ProgressWorking})

			resp := d.inv.Invoke(ctx, s.model, s.instance, prompt, conv)
			resp.Model, resp.Instance = s.model, s.instance
			results[i] = resp

			if resp.Failed() {
				d.emit(ProgressEvent{Kind: KindInstance, Round: round, Model: s.model, Instance: s.instance, Status: ProgressFailed, Message: resp.Error})
			} else {
				d.emit(ProgressEvent{Kind: KindInstance, Round: round, Model: s.model, Instance: s.instance, Status: ProgressComplete})
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// emit sends a progress event if a callback is registered.
func (d *Dispatcher) emit(ev ProgressEvent) {
	if d.onProgress != nil {
		d.onProgress(ev)
	}
}
