// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	actionv1beta1 "github.com/stolostron/multicloud-operators-foundation/pkg/apis/action/v1beta1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/yaml"

	"github.com/red-hat-storage/odf-console-sub009/internal/remoteop"
)

func newActionCommand(opts *rootOptions) *cobra.Command {
	var (
		cluster      string
		actionType   string
		manifestFile string
	)

	cmd := &cobra.Command{
		Use:   "action",
		Short: "Create, update or delete a resource on a managed cluster",
		Example: `  remoteop action --cluster cluster-b --action-type Create -f configmap.yaml
  remoteop action --cluster cluster-b --action-type Delete -f configmap.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := loadActionPayload(manifestFile, actionv1beta1.ActionType(actionType))
			if err != nil {
				return err
			}

			engine, err := opts.newEngine(cmd)
			if err != nil {
				return err
			}

			result, err := engine.FireAction(ctrl.SetupSignalHandler(), cluster, payload)
			if err != nil {
				return err
			}

			return opts.printResult(cmd.OutOrStdout(), result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cluster, "cluster", "", "Managed cluster name")
	flags.StringVar(&actionType, "action-type", string(actionv1beta1.CreateActionType),
		"One of Create, Update or Delete")
	flags.StringVarP(&manifestFile, "filename", "f", "", "Manifest of the resource to act on")

	for _, name := range []string{"cluster", "filename"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// loadActionPayload reads a single resource manifest. The manifest is sent as the
// template for Create and Update; Delete only uses its type and name.
func loadActionPayload(manifestFile string, actionType actionv1beta1.ActionType) (remoteop.ActionPayload, error) {
	data, err := os.ReadFile(manifestFile)
	if err != nil {
		return remoteop.ActionPayload{}, fmt.Errorf("unable to read manifest %s: %w", manifestFile, err)
	}

	obj := &unstructured.Unstructured{}
	if err := yaml.Unmarshal(data, &obj.Object); err != nil {
		return remoteop.ActionPayload{}, fmt.Errorf("unable to parse manifest %s: %w", manifestFile, err)
	}

	payload := remoteop.ActionPayload{
		ActionType:  actionType,
		ResourceGVK: obj.GroupVersionKind(),
		Name:        obj.GetName(),
		Namespace:   obj.GetNamespace(),
	}

	if actionType != actionv1beta1.DeleteActionType {
		payload.Template = obj.Object
	}

	return payload, nil
}
