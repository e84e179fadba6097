// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	actionv1beta1 "github.com/stolostron/multicloud-operators-foundation/pkg/apis/action/v1beta1"
	viewv1beta1 "github.com/stolostron/multicloud-operators-foundation/pkg/apis/view/v1beta1"
	"k8s.io/apimachinery/pkg/runtime"
)

// AddToScheme registers the request object types with s.
func AddToScheme(s *runtime.Scheme) error {
	if err := viewv1beta1.AddToScheme(s); err != nil {
		return err
	}

	return actionv1beta1.AddToScheme(s)
}
