// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-logr/logr"
	errorswrapper "github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
)

// poller owns the state of one call between dispatch and outcome:
//
//	Dispatched -> Polling -> Succeeded | Failed | TimedOut | Errored | Canceled
//
// Nothing in it is shared with other calls.
type poller[P any] struct {
	store          RemoteStore
	d              *Descriptor[P]
	key            types.NamespacedName
	config         PollConfig
	cleanupTimeout time.Duration
	log            logr.Logger

	attempt int
}

func (p *poller[P]) run(ctx context.Context) (*Result, Outcome, error) {
	backoff := wait.Backoff{Duration: p.config.Interval, Factor: 1, Steps: p.config.MaxAttempts}

	var (
		status    *Status
		statusErr error
	)

	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(context.Context) (bool, error) {
		p.attempt++

		obj, err := p.store.Get(ctx, p.d.GVK, p.key)
		if err != nil {
			return false, err
		}

		status, statusErr = requestStatus(obj)

		return status != nil || statusErr != nil, nil
	})

	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, OutcomeCanceled, p.canceled(ctx)
	case errors.Is(err, wait.ErrWaitTimeout):
		p.log.Info("Remote agent wrote no status", "attempts", p.attempt)

		return p.finish(ctx, nil, OutcomeTimedOut, &TimeoutError{
			Kind:     p.d.Kind(),
			Request:  p.key,
			Attempts: p.attempt,
		})
	default:
		// The request object may or may not exist; it is left alone.
		p.log.Error(err, "Failed to get request object", "attempt", p.attempt)

		return nil, OutcomeErrored, &TransportError{
			Kind:    p.d.Kind(),
			Request: p.key,
			Attempt: p.attempt,
			Err:     err,
		}
	}

	if statusErr != nil {
		p.log.Error(statusErr, "Unreadable status on request object", "attempt", p.attempt)

		return p.finish(ctx, nil, OutcomeFailed, &AmbiguousFailure{
			Kind:        p.d.Kind(),
			Request:     p.key,
			HealthCheck: p.d.HealthCheck,
		})
	}

	return p.classify(ctx, status)
}

func (p *poller[P]) classify(ctx context.Context, status *Status) (*Result, Outcome, error) {
	if len(status.Conditions) == 0 {
		p.log.Info("Request status carries no conditions", "attempt", p.attempt)

		return p.finish(ctx, nil, OutcomeFailed, &AmbiguousFailure{
			Kind:        p.d.Kind(),
			Request:     p.key,
			HealthCheck: p.d.HealthCheck,
		})
	}

	condition := status.Conditions[0]
	log := p.log.WithValues("type", condition.Type, "reason", condition.Reason, "attempt", p.attempt)

	switch p.d.Classify(condition) {
	case ClassSuccess:
		log.Info("Remote operation succeeded")

		return p.finish(ctx, &Result{
			ConditionType: condition.Type,
			Reason:        condition.Reason,
			Message:       condition.Message,
			Result:        p.d.ExtractResult(*status),
		}, OutcomeSucceeded, nil)
	case ClassFailure, ClassInProgress:
		message := condition.Message
		if message == "" {
			message = p.d.FailureMessage
		}

		log.Info("Remote operation failed", "message", message)

		return p.finish(ctx, nil, OutcomeFailed, &TerminalFailure{
			Kind:     p.d.Kind(),
			Request:  p.key,
			Reason:   condition.Reason,
			Message:  message,
			NotFound: p.d.NotFoundFromMessage && isNotFoundMessage(condition.Message),
		})
	default:
		log.Info("Unexpected condition on request object", "message", condition.Message)

		return p.finish(ctx, nil, OutcomeFailed, &AmbiguousFailure{
			Kind:        p.d.Kind(),
			Request:     p.key,
			Condition:   condition,
			HealthCheck: p.d.HealthCheck,
		})
	}
}

// finish deletes the request object and settles the call. A failed delete replaces
// the classified outcome.
func (p *poller[P]) finish(ctx context.Context, result *Result, outcome Outcome, outcomeErr error,
) (*Result, Outcome, error) {
	cleanupCtx, cancel := p.cleanupContext(ctx)
	defer cancel()

	if err := cleanup(cleanupCtx, p.store, p.d.GVK, p.key, p.log); err != nil {
		return nil, OutcomeErrored, &CleanupError{
			Kind:       p.d.Kind(),
			Request:    p.key,
			Err:        err,
			Superseded: outcomeErr,
		}
	}

	return result, outcome, outcomeErr
}

// canceled issues a best-effort delete once the caller's context has ended.
func (p *poller[P]) canceled(ctx context.Context) error {
	canceledErr := &CanceledError{Kind: p.d.Kind(), Request: p.key, Err: ctx.Err()}

	p.log.Info("Remote operation canceled", "attempt", p.attempt, "reason", ctx.Err().Error())

	cleanupCtx, cancel := p.cleanupContext(ctx)
	defer cancel()

	if err := cleanup(cleanupCtx, p.store, p.d.GVK, p.key, p.log); err != nil {
		return &CleanupError{Kind: p.d.Kind(), Request: p.key, Err: err, Superseded: canceledErr}
	}

	return canceledErr
}

// cleanupContext returns ctx while it is live. After the caller's context ended the
// delete runs on a detached context bounded by cleanupTimeout.
func (p *poller[P]) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}

	return context.WithTimeout(context.Background(), p.cleanupTimeout)
}

// requestStatus returns the status written by the agent, or nil when there is none yet.
func requestStatus(obj *unstructured.Unstructured) (*Status, error) {
	rawStatus, found := obj.Object["status"]
	if !found || rawStatus == nil {
		return nil, nil
	}

	data, err := json.Marshal(rawStatus)
	if err != nil {
		return nil, errorswrapper.Wrap(err, "failed to marshal request status")
	}

	status := &Status{}
	if err := json.Unmarshal(data, status); err != nil {
		return nil, errorswrapper.Wrap(err, "failed to unmarshal request status")
	}

	return status, nil
}
