package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/lstrojny/prometheus-weather-exporter/internal/logging"
)

// Result is the outcome of one collection.
type Result struct {
	// Readings holds the successful readings in task order.
	Readings []Weather
	// Failures holds the recoverable provider errors in task order.
	Failures []*ProviderError
}

// Orchestrator runs a TaskSet concurrently and joins the results.
type Orchestrator struct {
	client  *http.Client
	tasks   TaskSet
	workers int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkers bounds the number of tasks running at once. n <= 0 means
// unbounded.
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.workers = n
	}
}

// NewOrchestrator creates an Orchestrator. A nil client means
// http.DefaultClient.
func NewOrchestrator(client *http.Client, tasks TaskSet, opts ...OrchestratorOption) *Orchestrator {
	if client == nil {
		client = http.DefaultClient
	}

	o := &Orchestrator{client: client, tasks: tasks}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Tasks returns the task set the orchestrator runs.
func (o *Orchestrator) Tasks() TaskSet {
	return o.tasks
}

// Collect runs every task and waits for all of them. Provider errors are
// logged and reported in Result.Failures. If any task could not run to
// completion, Collect returns the joined *TaskError values and no readings.
func (o *Orchestrator) Collect(ctx context.Context) (Result, error) {
	logger := logging.FromContext(ctx)

	var g errgroup.Group
	if o.workers > 0 {
		g.SetLimit(o.workers)
	}

	readings := make([]*Weather, len(o.tasks))
	failures := make([]*ProviderError, len(o.tasks))
	fatal := make([]error, len(o.tasks))

	for i, task := range o.tasks {
		source, location := task.Provider.ID(), task.Request.Name

		if err := ctx.Err(); err != nil {
			fatal[i] = &TaskError{Source: source, Location: location, Err: err}
			continue
		}

		logger.Debug("Requesting weather data",
			"source", source,
			"location", location,
			"coordinates", task.Request.Query.String(),
		)

		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					fatal[i] = &TaskError{
						Source:   source,
						Location: location,
						Err:      fmt.Errorf("%w: %v", ErrTaskPanicked, r),
					}
				}
			}()

			w, err := task.Provider.Fetch(ctx, o.client, task.Cache, task.Request)
			if err != nil {
				failures[i] = &ProviderError{Source: source, Location: location, Err: err}
				return nil
			}

			if w.Source == "" {
				w.Source = source
			}
			if w.Location == "" {
				w.Location = location
			}
			readings[i] = &w
			return nil
		})
	}

	// Every goroutine returns nil; failures are collected per task.
	_ = g.Wait()

	var result Result
	var taskErrs []error
	for i := range o.tasks {
		switch {
		case fatal[i] != nil:
			logger.Error("Task execution failed", "error", fatal[i])
			taskErrs = append(taskErrs, fatal[i])
		case failures[i] != nil:
			logger.Error("Provider request failed",
				"source", failures[i].Source,
				"location", failures[i].Location,
				"error", failures[i].Err,
			)
			result.Failures = append(result.Failures, failures[i])
		case readings[i] != nil:
			result.Readings = append(result.Readings, *readings[i])
		}
	}

	if len(taskErrs) > 0 {
		return Result{}, errors.Join(taskErrs...)
	}

	logger.Debug("Collected weather data",
		"readings", len(result.Readings),
		"failures", len(result.Failures),
	)
	return result, nil
}
