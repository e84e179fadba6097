// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"fmt"

	errorswrapper "github.com/pkg/errors"
	viewv1beta1 "github.com/stolostron/multicloud-operators-foundation/pkg/apis/view/v1beta1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const ViewNamePrefix = "mcv-"

var ManagedClusterViewGVK = schema.GroupVersionKind{
	Group:   "view.open-cluster-management.io",
	Version: "v1beta1",
	Kind:    "ManagedClusterView",
}

// ViewPayload names one resource to read from a managed cluster. Namespace is empty
// for cluster scoped resources.
type ViewPayload struct {
	Name      string
	Namespace string
	Kind      string
	Group     string
	Version   string
}

// ViewPayloadFor builds a ViewPayload for the resource with the given GVK.
func ViewPayloadFor(gvk schema.GroupVersionKind, name, namespace string) ViewPayload {
	return ViewPayload{
		Name:      name,
		Namespace: namespace,
		Kind:      gvk.Kind,
		Group:     gvk.Group,
		Version:   gvk.Version,
	}
}

func buildViewSpec(_ string, payload ViewPayload) (map[string]interface{}, error) {
	if payload.Name == "" || payload.Kind == "" || payload.Version == "" {
		return nil, fmt.Errorf("%w: view requires name, kind and version (got %+v)", ErrInvalidPayload, payload)
	}

	spec := &viewv1beta1.ViewSpec{
		Scope: viewv1beta1.ViewScope{
			Kind:      payload.Kind,
			Group:     payload.Group,
			Version:   payload.Version,
			Name:      payload.Name,
			Namespace: payload.Namespace,
		},
	}

	unstructuredSpec, err := runtime.DefaultUnstructuredConverter.ToUnstructured(spec)
	if err != nil {
		return nil, errorswrapper.Wrap(err, "failed to convert ManagedClusterView spec")
	}

	return unstructuredSpec, nil
}

// ViewDescriptor fires ManagedClusterView requests.
var ViewDescriptor = Descriptor[ViewPayload]{
	GVK:        ManagedClusterViewGVK,
	NamePrefix: ViewNamePrefix,
	BuildSpec:  buildViewSpec,
	IsTerminalSuccess: conditionMatcher(viewv1beta1.ConditionViewProcessing,
		viewv1beta1.ReasonGetResource),
	IsTerminalFailure: conditionMatcher(viewv1beta1.ConditionViewProcessing,
		viewv1beta1.ReasonGetResourceFailed,
		viewv1beta1.ReasonResourceNameInvalid,
		viewv1beta1.ReasonResourceTypeInvalid,
		viewv1beta1.ReasonResourceGVKInvalid),
	IsInProgress:        conditionTypeMatcher(viewv1beta1.ConditionViewProcessing),
	ExtractResult:       rawResult,
	FailureMessage:      "the managed cluster view could not read the resource",
	HealthCheck:         HealthCheckWorkManager,
	NotFoundFromMessage: true,
	Poll:                PollConfig{MaxAttempts: DefaultMaxAttempts, Interval: DefaultInterval},
}
