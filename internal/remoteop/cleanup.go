// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"context"

	"github.com/go-logr/logr"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
)

// cleanup deletes a request object. A missing object is not an error.
func cleanup(ctx context.Context, store RemoteStore, gvk schema.GroupVersionKind, key types.NamespacedName,
	log logr.Logger,
) error {
	log.V(1).Info("Deleting request object", "namespace", key.Namespace, "name", key.Name)

	err := store.Delete(ctx, gvk, key)
	if err != nil {
		if k8serrors.IsNotFound(err) {
			log.V(1).Info("Request object already deleted")

			return nil
		}

		log.Error(err, "Failed to delete request object")

		return err
	}

	return nil
}
