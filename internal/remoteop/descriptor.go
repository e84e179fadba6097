// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"encoding/json"
	"time"

	errorswrapper "github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	DefaultMaxAttempts = 20
	DefaultInterval    = 500 * time.Millisecond

	// HealthCheckWorkManager is the managed cluster add-on that reconciles request objects.
	HealthCheckWorkManager = "work-manager add-on (open-cluster-management-agent-addon namespace)"
)

// Condition is the status condition the remote agent writes at index 0.
type Condition = metav1.Condition

// Status is the part of a request object written by the remote agent.
type Status struct {
	Conditions []metav1.Condition    `json:"conditions,omitempty"`
	Result     runtime.RawExtension `json:"result,omitempty"`
}

// PollConfig bounds the wait for the remote agent. Every call ends after at most
// MaxAttempts reads spaced Interval apart.
type PollConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

func (p PollConfig) withDefaults() PollConfig {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}

	return p
}

// Classification is the bucket a status condition falls in.
type Classification string

const (
	ClassSuccess    Classification = "Success"
	ClassFailure    Classification = "Failure"
	ClassInProgress Classification = "InProgress"
	ClassAmbiguous  Classification = "Ambiguous"
)

// Descriptor specializes the request/poll/cleanup engine for one kind of remote
// operation. Descriptors are plain values; a new kind of remote operation needs a new
// value and nothing else.
type Descriptor[P any] struct {
	// GVK of the request object created on the hub.
	GVK schema.GroupVersionKind
	// NamePrefix is used as metadata.generateName.
	NamePrefix string

	BuildSpec func(target string, payload P) (map[string]interface{}, error)

	IsTerminalSuccess func(Condition) bool
	IsTerminalFailure func(Condition) bool
	// IsInProgress recognizes the kind's condition type with an unfinished reason. The
	// engine does not wait on it; it is reported as a failure.
	IsInProgress func(Condition) bool

	ExtractResult func(Status) runtime.RawExtension

	// FailureMessage is returned when the agent reports a failure without a message.
	FailureMessage string
	// HealthCheck names where to look when the agent answers with an unknown condition.
	HealthCheck string
	// NotFoundFromMessage reports failures whose message names a missing resource as
	// Kubernetes NotFound errors.
	NotFoundFromMessage bool

	Poll PollConfig
}

// Classify maps the first status condition onto a Classification. Success is checked
// first, then explicit failure, then the in-progress signal; anything else is ambiguous.
func (d *Descriptor[P]) Classify(condition Condition) Classification {
	switch {
	case d.IsTerminalSuccess(condition):
		return ClassSuccess
	case d.IsTerminalFailure(condition):
		return ClassFailure
	case d.IsInProgress(condition):
		return ClassInProgress
	default:
		return ClassAmbiguous
	}
}

// Kind is the request object kind, used in logs and metric labels.
func (d *Descriptor[P]) Kind() string {
	return d.GVK.Kind
}

// Result is what a successful remote operation resolves with.
type Result struct {
	ConditionType string
	Reason        string
	Message       string
	Result        runtime.RawExtension
}

// Into decodes the raw result written by the agent into out.
func (r *Result) Into(out interface{}) error {
	if len(r.Result.Raw) == 0 {
		return errorswrapper.New("remote operation returned an empty result")
	}

	if err := json.Unmarshal(r.Result.Raw, out); err != nil {
		return errorswrapper.Wrap(err, "failed to unmarshal remote operation result")
	}

	return nil
}

func conditionMatcher(conditionType string, reasons ...string) func(Condition) bool {
	return func(c Condition) bool {
		if c.Type != conditionType {
			return false
		}

		for _, reason := range reasons {
			if c.Reason == reason {
				return true
			}
		}

		return false
	}
}

func conditionTypeMatcher(conditionType string) func(Condition) bool {
	return func(c Condition) bool {
		return c.Type == conditionType
	}
}

func rawResult(status Status) runtime.RawExtension {
	return status.Result
}
