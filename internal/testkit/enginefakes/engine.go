// Package enginefakes provides an in-memory rule engine for handler tests.
package enginefakes

import (
	"context"
	"slices"
	"sync"

	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/engine"
)

// Engine answers calculations from configured per-variable results. It is
// safe to reconfigure while a server goroutine is calling it.
type Engine struct {
	mu       sync.Mutex
	results  map[string]engine.VariableResult
	computes map[string]ComputeFunc
	errs     map[string]error
	err      error
	requests []engine.Request
}

var _ engine.Engine = (*Engine)(nil)

// ComputeFunc derives the values of one variable from the request. It runs
// while the fake holds its lock and must not call back into it.
type ComputeFunc func(req engine.Request) (engine.VariableResult, error)

// SetResult configures the values returned for variable.
func (f *Engine) SetResult(variable string, result engine.VariableResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string]engine.VariableResult)
	}
	f.results[variable] = result
}

// SetCompute makes variable computed by fn, taking precedence over SetResult.
func (f *Engine) SetCompute(variable string, fn ComputeFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.computes == nil {
		f.computes = make(map[string]ComputeFunc)
	}
	f.computes[variable] = fn
}

// FailVariable makes calculations requesting variable return err. A nil err
// clears the failure.
func (f *Engine) FailVariable(variable string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, variable)
		return
	}
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	f.errs[variable] = err
}

// Fail makes every calculation return err.
func (f *Engine) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calculate records req and returns the configured results for its variables.
func (f *Engine) Calculate(ctx context.Context, req engine.Request) (engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req.Variables = slices.Clone(req.Variables)
	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return engine.Result{}, err
	}
	if f.err != nil {
		return engine.Result{}, f.err
	}

	result := engine.Result{Variables: make(map[string]engine.VariableResult, len(req.Variables))}
	for _, name := range req.Variables {
		if err := f.errs[name]; err != nil {
			return engine.Result{}, err
		}
		if compute, ok := f.computes[name]; ok {
			values, err := compute(req)
			if err != nil {
				return engine.Result{}, err
			}
			result.Variables[name] = values
			continue
		}
		if values, ok := f.results[name]; ok {
			result.Variables[name] = values
		}
	}
	return result, nil
}

// Requests returns the calculations received so far.
func (f *Engine) Requests() []engine.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}
