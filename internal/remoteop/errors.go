// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"errors"
	"fmt"
	"strings"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
)

var (
	ErrInvalidTarget  = errors.New("invalid target cluster")
	ErrInvalidPayload = errors.New("invalid remote operation payload")
)

// DispatchError is returned when the request object could not be created. Nothing is
// polled or cleaned up after it.
type DispatchError struct {
	Kind    string
	Cluster string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to create %s in cluster %s: %v", e.Kind, e.Cluster, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// TransportError is returned when reading the request object failed while polling.
type TransportError struct {
	Kind    string
	Request types.NamespacedName
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to get %s %s (attempt %d): %v", e.Kind, e.Request, e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TerminalFailure is returned when the agent reported that the operation failed.
type TerminalFailure struct {
	Kind    string
	Request types.NamespacedName
	Reason  string
	Message string
	// NotFound is set when the agent reported the remote resource as missing.
	NotFound bool
}

func (e *TerminalFailure) Error() string {
	return e.Message
}

// Unwrap exposes a Kubernetes NotFound error so k8serrors.IsNotFound works on view
// failures for missing resources.
func (e *TerminalFailure) Unwrap() error {
	if !e.NotFound {
		return nil
	}

	return k8serrors.NewNotFound(schema.GroupResource{}, "requested resource not found in ManagedCluster")
}

// AmbiguousFailure is returned when the agent wrote a condition the engine does not
// recognize, which usually means the agent itself is unhealthy.
type AmbiguousFailure struct {
	Kind        string
	Request     types.NamespacedName
	Condition   Condition
	HealthCheck string
}

func (e *AmbiguousFailure) Error() string {
	return fmt.Sprintf("unexpected condition (type: %q, reason: %q) on %s %s; "+
		"the remote agent may be unhealthy, check the status of the %s on cluster %s",
		e.Condition.Type, e.Condition.Reason, e.Kind, e.Request, e.HealthCheck, e.Request.Namespace)
}

// TimeoutError is returned when the agent wrote no status within the poll budget.
type TimeoutError struct {
	Kind     string
	Request  types.NamespacedName
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %d attempts waiting for %s %s on cluster %s",
		e.Attempts, e.Kind, e.Request.Name, e.Request.Namespace)
}

// CleanupError is returned when deleting the request object failed. It takes the
// place of the outcome that was classified before cleanup; that outcome is kept in
// Superseded.
type CleanupError struct {
	Kind       string
	Request    types.NamespacedName
	Err        error
	Superseded error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to delete %s %s: %v", e.Kind, e.Request, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// CanceledError is returned when the caller's context ended before an outcome.
type CanceledError struct {
	Kind    string
	Request types.NamespacedName
	Err     error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("%s %s canceled: %v", e.Kind, e.Request, e.Err)
}

func (e *CanceledError) Unwrap() error { return e.Err }

// IsRequestFailure returns true if err reports a failure stated by the remote agent,
// as opposed to a hub side error.
func IsRequestFailure(err error) bool {
	var (
		terminal  *TerminalFailure
		ambiguous *AmbiguousFailure
	)

	return errors.As(err, &terminal) || errors.As(err, &ambiguous)
}

// IsTimeout returns true if err or an error wrapped by it is a TimeoutError.
func IsTimeout(err error) bool {
	var timeout *TimeoutError

	return errors.As(err, &timeout)
}

// isNotFoundMessage matches the agent messages for a resource missing on the managed
// cluster. The view agent only reports those in the condition message.
func isNotFoundMessage(message string) bool {
	return strings.HasSuffix(message, "not found") ||
		strings.HasSuffix(message, "the server could not find the requested resource")
}
