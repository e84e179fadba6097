// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	errorswrapper "github.com/pkg/errors"
	actionv1beta1 "github.com/stolostron/multicloud-operators-foundation/pkg/apis/action/v1beta1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// Reasons the work-manager reports that have no constant in actionv1beta1.
	ReasonActionDone    = "ActionDone"
	ReasonKubeWorkIsNil = "KubeWorkIsNil"

	ActionNamePrefix = "mca-"
	actionSpecType   = "Action"
)

var ManagedClusterActionGVK = schema.GroupVersionKind{
	Group:   "action.open-cluster-management.io",
	Version: "v1beta1",
	Kind:    "ManagedClusterAction",
}

// ActionPayload describes a mutation of one resource on a managed cluster.
type ActionPayload struct {
	ActionType actionv1beta1.ActionType
	// ResourceGVK is the type of the resource acted upon.
	ResourceGVK schema.GroupVersionKind
	Name        string
	Namespace   string
	// Template is the JSON-compatible resource body for Create and Update; ignored for Delete.
	Template map[string]interface{}
}

// ResourceType renders the GVK as <kind>.<group>.<version>, dropping the empty core group.
func (p ActionPayload) ResourceType() string {
	parts := []string{p.ResourceGVK.Kind}
	if p.ResourceGVK.Group != "" {
		parts = append(parts, p.ResourceGVK.Group)
	}

	return strings.Join(append(parts, p.ResourceGVK.Version), ".")
}

func (p ActionPayload) validate() error {
	switch p.ActionType {
	case actionv1beta1.CreateActionType, actionv1beta1.UpdateActionType:
		if p.Template == nil {
			return fmt.Errorf("%w: %s action requires a template", ErrInvalidPayload, p.ActionType)
		}
	case actionv1beta1.DeleteActionType:
	default:
		return fmt.Errorf("%w: unsupported action type %q", ErrInvalidPayload, p.ActionType)
	}

	if p.ResourceGVK.Kind == "" || p.ResourceGVK.Version == "" {
		return fmt.Errorf("%w: resource kind and version are required", ErrInvalidPayload)
	}

	if p.Name == "" {
		return fmt.Errorf("%w: resource name is required", ErrInvalidPayload)
	}

	return nil
}

func buildActionSpec(target string, payload ActionPayload) (map[string]interface{}, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}

	kubeWork := &actionv1beta1.KubeWorkSpec{
		Resource:  payload.ResourceType(),
		Name:      payload.Name,
		Namespace: payload.Namespace,
	}

	if payload.Template != nil {
		template, err := json.Marshal(payload.Template)
		if err != nil {
			return nil, errorswrapper.Wrap(err, "failed to marshal action template")
		}

		kubeWork.ObjectTemplate = runtime.RawExtension{Raw: template}
	}

	spec, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&actionv1beta1.ActionSpec{
		ActionType: payload.ActionType,
		KubeWork:   kubeWork,
	})
	if err != nil {
		return nil, errorswrapper.Wrap(err, "failed to convert ManagedClusterAction spec")
	}

	if payload.Template == nil {
		unstructured.RemoveNestedField(spec, "kube", "template")
	}

	// cluster, type and scope are read by the work-manager but are not part of ActionSpec.
	spec["cluster"] = map[string]interface{}{"name": target}
	spec["type"] = actionSpecType
	spec["scope"] = map[string]interface{}{
		"resourceType": kubeWork.Resource,
		"namespace":    payload.Namespace,
	}

	return spec, nil
}

// ActionDescriptor fires ManagedClusterAction requests.
var ActionDescriptor = Descriptor[ActionPayload]{
	GVK:        ManagedClusterActionGVK,
	NamePrefix: ActionNamePrefix,
	BuildSpec:  buildActionSpec,
	IsTerminalSuccess: conditionMatcher(actionv1beta1.ConditionActionCompleted,
		ReasonActionDone),
	IsTerminalFailure: conditionMatcher(actionv1beta1.ConditionActionCompleted,
		actionv1beta1.ReasonCreateResourceFailed,
		actionv1beta1.ReasonUpdateResourceFailed,
		actionv1beta1.ReasonDeleteResourceFailed,
		actionv1beta1.ReasonActionTypeInvalid,
		ReasonKubeWorkIsNil),
	IsInProgress:   conditionTypeMatcher(actionv1beta1.ConditionActionCompleted),
	ExtractResult:  rawResult,
	FailureMessage: "the managed cluster action did not complete",
	HealthCheck:    HealthCheckWorkManager,
	Poll:           PollConfig{MaxAttempts: DefaultMaxAttempts, Interval: DefaultInterval},
}

// CreateResource creates obj on the managed cluster.
func (e *Engine) CreateResource(ctx context.Context, cluster string, obj client.Object) (*Result, error) {
	return e.applyResource(ctx, cluster, actionv1beta1.CreateActionType, obj)
}

// UpdateResource replaces obj on the managed cluster.
func (e *Engine) UpdateResource(ctx context.Context, cluster string, obj client.Object) (*Result, error) {
	return e.applyResource(ctx, cluster, actionv1beta1.UpdateActionType, obj)
}

// DeleteResource deletes the named resource on the managed cluster.
func (e *Engine) DeleteResource(ctx context.Context, cluster string, gvk schema.GroupVersionKind,
	name, namespace string,
) (*Result, error) {
	return e.FireAction(ctx, cluster, ActionPayload{
		ActionType:  actionv1beta1.DeleteActionType,
		ResourceGVK: gvk,
		Name:        name,
		Namespace:   namespace,
	})
}

func (e *Engine) applyResource(ctx context.Context, cluster string, actionType actionv1beta1.ActionType,
	obj client.Object,
) (*Result, error) {
	gvk := obj.GetObjectKind().GroupVersionKind()
	if gvk.Empty() {
		return nil, fmt.Errorf("%w: object %s has no apiVersion/kind set", ErrInvalidPayload, obj.GetName())
	}

	template, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, errorswrapper.Wrap(err, "failed to convert action template")
	}

	return e.FireAction(ctx, cluster, ActionPayload{
		ActionType:  actionType,
		ResourceGVK: gvk,
		Name:        obj.GetName(),
		Namespace:   obj.GetNamespace(),
		Template:    template,
	})
}
