// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"context"

	errorswrapper "github.com/pkg/errors"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// RemoteStore is the hub API the request objects live in. Get and Delete must return
// an error satisfying k8serrors.IsNotFound for missing objects.
type RemoteStore interface {
	// Create stores obj and updates it in place with the server's copy, including the
	// generated name.
	Create(ctx context.Context, obj *unstructured.Unstructured) error
	Get(ctx context.Context, gvk schema.GroupVersionKind, key types.NamespacedName) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, gvk schema.GroupVersionKind, key types.NamespacedName) error
}

// ClientStore is a RemoteStore backed by a controller-runtime client. Reads go to the
// client directly; use an uncached client (or APIReader) so polls see agent writes.
type ClientStore struct {
	client.Client
}

var _ RemoteStore = ClientStore{}

func (s ClientStore) Create(ctx context.Context, obj *unstructured.Unstructured) error {
	return s.Client.Create(ctx, obj)
}

func (s ClientStore) Get(ctx context.Context, gvk schema.GroupVersionKind, key types.NamespacedName,
) (*unstructured.Unstructured, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(gvk)

	if err := s.Client.Get(ctx, key, obj); err != nil {
		return nil, err
	}

	return obj, nil
}

func (s ClientStore) Delete(ctx context.Context, gvk schema.GroupVersionKind, key types.NamespacedName) error {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(gvk)
	obj.SetName(key.Name)
	obj.SetNamespace(key.Namespace)

	return s.Client.Delete(ctx, obj)
}

// RateLimitedStore bounds the request rate a RemoteStore sees from all callers sharing it.
type RateLimitedStore struct {
	Store   RemoteStore
	Limiter *rate.Limiter
}

var _ RemoteStore = RateLimitedStore{}

// NewRateLimitedStore wraps store with a token bucket of qps and burst. A non-positive
// qps disables limiting.
func NewRateLimitedStore(store RemoteStore, qps float64, burst int) RemoteStore {
	if qps <= 0 {
		return store
	}

	if burst < 1 {
		burst = 1
	}

	return RateLimitedStore{Store: store, Limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

func (s RateLimitedStore) Create(ctx context.Context, obj *unstructured.Unstructured) error {
	if err := s.Limiter.Wait(ctx); err != nil {
		return errorswrapper.Wrap(err, "rate limiter")
	}

	return s.Store.Create(ctx, obj)
}

func (s RateLimitedStore) Get(ctx context.Context, gvk schema.GroupVersionKind, key types.NamespacedName,
) (*unstructured.Unstructured, error) {
	if err := s.Limiter.Wait(ctx); err != nil {
		return nil, errorswrapper.Wrap(err, "rate limiter")
	}

	return s.Store.Get(ctx, gvk, key)
}

func (s RateLimitedStore) Delete(ctx context.Context, gvk schema.GroupVersionKind, key types.NamespacedName) error {
	if err := s.Limiter.Wait(ctx); err != nil {
		return errorswrapper.Wrap(err, "rate limiter")
	}

	return s.Store.Delete(ctx, gvk, key)
}
