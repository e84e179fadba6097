// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Sweeper removes request objects left behind by callers that exited before cleanup,
// for example a hub process that crashed mid poll.
type Sweeper struct {
	client.Client
	Log logr.Logger
}

// Sweep deletes the request objects of every known kind created by this module in
// the cluster namespace and older than olderThan. It returns how many were deleted.
func (s Sweeper) Sweep(ctx context.Context, cluster string, olderThan time.Duration) (int, error) {
	deleted := 0
	now := time.Now()

	for _, gvk := range []schema.GroupVersionKind{ManagedClusterActionGVK, ManagedClusterViewGVK} {
		requests, err := s.requests(ctx, cluster, gvk)
		if err != nil {
			return deleted, err
		}

		for idx := range requests.Items {
			request := &requests.Items[idx]
			if !isExpired(request, olderThan, now) {
				continue
			}

			s.Log.Info("Deleting orphaned request", "kind", gvk.Kind, "cluster", cluster, "name", request.GetName(),
				"operationID", request.GetLabels()[OperationIDLabel])

			if err := s.Client.Delete(ctx, request); err != nil && !k8serrors.IsNotFound(err) {
				return deleted, fmt.Errorf("failed to delete %s (%s/%s), %w", gvk.Kind, cluster, request.GetName(), err)
			}

			deleted++
		}
	}

	return deleted, nil
}

func (s Sweeper) requests(ctx context.Context, cluster string, gvk schema.GroupVersionKind,
) (*unstructured.UnstructuredList, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(gvk.GroupVersion().WithKind(gvk.Kind + "List"))

	requestLabels := client.MatchingLabels{ManagedByLabel: ManagedByValue}

	listOptions := []client.ListOption{
		client.InNamespace(cluster),
		requestLabels,
	}

	if err := s.Client.List(ctx, list, listOptions...); err != nil {
		return nil, fmt.Errorf("failed to list %s labeled %v, %w", gvk.Kind, labels.Set(requestLabels), err)
	}

	return list, nil
}

// isExpired reports whether request was created more than olderThan before now. A
// non-positive olderThan expires everything.
func isExpired(request client.Object, olderThan time.Duration, now time.Time) bool {
	if olderThan <= 0 {
		return true
	}

	return request.GetCreationTimestamp().Add(olderThan).Before(now)
}
