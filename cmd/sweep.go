// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/red-hat-storage/odf-console-sub009/internal/remoteop"
)

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var (
		cluster   string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete request objects left behind in a managed cluster namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}

			sweeper := remoteop.Sweeper{Client: c, Log: ctrl.Log.WithName("sweep")}

			deleted, err := sweeper.Sweep(ctrl.SetupSignalHandler(), cluster, olderThan)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d request(s) in %s\n", deleted, cluster)

			return err
		},
	}

	cmd.Flags().StringVar(&cluster, "cluster", "", "Managed cluster name")
	cmd.Flags().DurationVar(&olderThan, "older-than", 10*time.Minute,
		"Only delete requests created longer ago than this")
	_ = cmd.MarkFlagRequired("cluster")

	return cmd
}
