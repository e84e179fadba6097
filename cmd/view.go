// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/red-hat-storage/odf-console-sub009/internal/remoteop"
)

func newViewCommand(opts *rootOptions) *cobra.Command {
	var (
		cluster string
		payload remoteop.ViewPayload
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Read a resource from a managed cluster",
		Example: `  remoteop view --cluster cluster-b --api-group storage.k8s.io --version v1 \
    --kind StorageClass --name ocs-storagecluster-ceph-rbd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.newEngine(cmd)
			if err != nil {
				return err
			}

			result, err := engine.FireView(ctrl.SetupSignalHandler(), cluster, payload)
			if err != nil {
				return err
			}

			return opts.printResult(cmd.OutOrStdout(), result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cluster, "cluster", "", "Managed cluster name")
	flags.StringVar(&payload.Name, "name", "", "Resource name")
	flags.StringVarP(&payload.Namespace, "namespace", "n", "", "Resource namespace, empty for cluster scoped resources")
	flags.StringVar(&payload.Kind, "kind", "", "Resource kind")
	flags.StringVar(&payload.Group, "api-group", "", "Resource API group, empty for the core group")
	flags.StringVar(&payload.Version, "version", "v1", "Resource API version")

	for _, name := range []string{"cluster", "name", "kind"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
