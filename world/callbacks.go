package world

import (
	"context"

	"github.com/hupe1980/agentsim/core"
)

// CallbackType names the lifecycle points of a world run where callbacks can
// be executed. Callbacks run synchronously and can abort the run by returning
// an error, which makes them suitable for validation, auditing and metrics.
type CallbackType string

const (
	// CallbackBeforeWorld is triggered before the arena is created.
	// A callback error here aborts the run before any engine call.
	CallbackBeforeWorld CallbackType = "before_world"

	// CallbackAfterBroadcast is triggered after the stimulus was delivered.
	CallbackAfterBroadcast CallbackType = "after_broadcast"

	// CallbackBeforeRound is triggered before each round executes.
	// A callback error aborts the run before the round runs.
	CallbackBeforeRound CallbackType = "before_round"

	// CallbackAfterRound is triggered after each round with its actions.
	CallbackAfterRound CallbackType = "after_round"

	// CallbackOnError is triggered when the run fails. Its own error is
	// ignored; the original failure must never be masked.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the run state visible to a callback.
type CallbackContext struct {
	// RunContext is the per-run scope (identifiers, limiter, logger).
	RunContext *core.RunContext

	// WorldName is the arena the run operates on.
	WorldName string

	// Round is the 1-based round index for round callbacks, zero otherwise.
	Round int

	// Actions holds the round's actions for after_round callbacks.
	Actions []core.Action

	// Err is the failure for on_error callbacks, nil otherwise.
	Err error
}

// Callback is a lifecycle hook for world runs.
//
// Implementations should be fast (they run synchronously inside the round
// loop) and must not retain the CallbackContext beyond the call.
type Callback interface {
	// Type returns the lifecycle point this callback handles.
	Type() CallbackType

	// Execute runs the hook. A non-nil error aborts the run, except for
	// on_error callbacks whose errors are ignored.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a plain function as a Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback for the given
// lifecycle point.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// callbackManager routes callbacks to their lifecycle points. Registration is
// expected to complete before runs start; execution is then safe for
// concurrent use.
type callbackManager struct {
	callbacks map[CallbackType][]Callback
}

func newCallbackManager() *callbackManager {
	return &callbackManager{callbacks: make(map[CallbackType][]Callback)}
}

func (cm *callbackManager) register(cb Callback) {
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// execute runs all callbacks registered for the type in registration order,
// stopping at the first error.
func (cm *callbackManager) execute(ctx context.Context, callbackType CallbackType, callbackCtx *CallbackContext) error {
	for _, cb := range cm.callbacks[callbackType] {
		if err := cb.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}
	return nil
}
