// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	ctrl "sigs.k8s.io/controller-runtime"
)

const (
	ManagedByLabel   = "remoteop.odf.openshift.io/managed-by"
	ManagedByValue   = "odf-console"
	OperationIDLabel = "remoteop.odf.openshift.io/operation-id"
)

// Engine fires remote operations against a RemoteStore. It keeps no state between
// calls; any number of calls may run concurrently.
type Engine struct {
	Store RemoteStore
	Log   logr.Logger

	// ActionPoll and ViewPoll override the descriptors' poll budgets when set.
	ActionPoll PollConfig
	ViewPoll   PollConfig

	// CleanupTimeout bounds the delete issued after the caller's context ended.
	CleanupTimeout time.Duration
}

// NewEngine returns an Engine configured from config, rate limiting store when config
// asks for it.
func NewEngine(store RemoteStore, config RemoteOperationConfig, log logr.Logger) *Engine {
	return &Engine{
		Store:          NewRateLimitedStore(store, config.QPS, config.Burst),
		Log:            log,
		ActionPoll:     config.ActionPollConfig(),
		ViewPoll:       config.ViewPollConfig(),
		CleanupTimeout: config.CleanupTimeout(),
	}
}

func (e *Engine) logger() logr.Logger {
	if e.Log.GetSink() == nil {
		return ctrl.Log.WithName("remoteop")
	}

	return e.Log
}

func (e *Engine) cleanupTimeout() time.Duration {
	if e.CleanupTimeout <= 0 {
		return defaultCleanupTimeout
	}

	return e.CleanupTimeout
}

// FireAction runs a ManagedClusterAction on cluster and waits for its outcome.
func (e *Engine) FireAction(ctx context.Context, cluster string, payload ActionPayload) (*Result, error) {
	d := ActionDescriptor
	if e.ActionPoll != (PollConfig{}) {
		d.Poll = e.ActionPoll
	}

	return Fire(ctx, e, &d, cluster, payload)
}

// FireView reads a resource on cluster through a ManagedClusterView.
func (e *Engine) FireView(ctx context.Context, cluster string, payload ViewPayload) (*Result, error) {
	d := ViewDescriptor
	if e.ViewPoll != (PollConfig{}) {
		d.Poll = e.ViewPoll
	}

	return Fire(ctx, e, &d, cluster, payload)
}

// Fire creates one request object of descriptor d in the target cluster's namespace
// and polls it until the agent reports an outcome, the poll budget runs out, or ctx
// ends. The request object is deleted on every outcome except a failed read.
func Fire[P any](ctx context.Context, e *Engine, d *Descriptor[P], target string, payload P) (*Result, error) {
	operationID := uuid.New().String()
	log := e.logger().WithValues("kind", d.Kind(), "cluster", target, "operationID", operationID)
	metrics := newOperationMetrics(d.Kind())

	key, err := dispatch(ctx, e.Store, d, target, payload, operationID)
	if err != nil {
		log.Error(err, "Failed to dispatch remote operation")
		metrics.done(OutcomeErrored, 0)

		return nil, err
	}

	p := &poller[P]{
		store:          e.Store,
		d:              d,
		key:            key,
		config:         d.Poll.withDefaults(),
		cleanupTimeout: e.cleanupTimeout(),
		log:            log.WithValues("name", key.Name),
	}

	result, outcome, err := p.run(ctx)
	metrics.done(outcome, p.attempt)

	return result, err
}
