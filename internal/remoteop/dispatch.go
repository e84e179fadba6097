// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/validation"
)

func newRequestObject[P any](d *Descriptor[P], target, operationID string, spec map[string]interface{},
) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{}}
	obj.SetGroupVersionKind(d.GVK)
	obj.SetGenerateName(d.NamePrefix)
	obj.SetNamespace(target)
	obj.SetLabels(map[string]string{
		ManagedByLabel:   ManagedByValue,
		OperationIDLabel: operationID,
	})
	obj.Object["spec"] = spec

	return obj
}

// dispatch creates the request object for one call and returns its server generated
// identity. Exactly one Create is issued when the inputs are valid.
func dispatch[P any](ctx context.Context, store RemoteStore, d *Descriptor[P], target string, payload P,
	operationID string,
) (types.NamespacedName, error) {
	if target == "" {
		return types.NamespacedName{}, fmt.Errorf("%w: cluster name is empty", ErrInvalidTarget)
	}

	if msgs := validation.IsDNS1123Label(target); len(msgs) != 0 {
		return types.NamespacedName{}, fmt.Errorf("%w: %q: %s", ErrInvalidTarget, target, strings.Join(msgs, ", "))
	}

	spec, err := d.BuildSpec(target, payload)
	if err != nil {
		return types.NamespacedName{}, err
	}

	obj := newRequestObject(d, target, operationID, spec)

	if err := store.Create(ctx, obj); err != nil {
		return types.NamespacedName{}, &DispatchError{Kind: d.Kind(), Cluster: target, Err: err}
	}

	if obj.GetName() == "" {
		return types.NamespacedName{}, &DispatchError{
			Kind:    d.Kind(),
			Cluster: target,
			Err:     errors.New("server did not return a generated name"),
		}
	}

	return types.NamespacedName{Name: obj.GetName(), Namespace: target}, nil
}
