// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/yaml"

	"github.com/red-hat-storage/odf-console-sub009/internal/remoteop"
	"github.com/red-hat-storage/odf-console-sub009/pkg/utils"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

type rootOptions struct {
	configFile string
	qps        float64
	burst      int
	output     string
	logOpts    *zap.Options
}

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(remoteop.AddToScheme(scheme))
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "remoteop",
		Short: "Run actions and views on managed clusters through the hub",
		Long: `remoteop creates ManagedClusterAction and ManagedClusterView requests in a
managed cluster's namespace on the hub, waits for the cluster's agent to report the
outcome, and deletes the request.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			utils.SetupLogger(opts.logOpts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "",
		"Load remote operation settings from this file. "+
			"Command-line flags override configuration from this file.")
	flags.Float64Var(&opts.qps, "qps", 0, "Maximum request object reads and writes per second (0 is unlimited)")
	flags.IntVar(&opts.burst, "burst", 0, "Burst for --qps")
	flags.StringVarP(&opts.output, "output", "o", "yaml", "Output format: yaml or json")

	// --kubeconfig and the zap flags live on the go flag set.
	opts.logOpts = utils.ConfigureLogOptions(flag.CommandLine)
	flags.AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(
		newViewCommand(opts),
		newActionCommand(opts),
		newSweepCommand(opts),
	)

	return rootCmd
}

func (o *rootOptions) newClient() (client.Client, error) {
	cfg, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("unable to load kubeconfig: %w", err)
	}

	c, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("unable to create client: %w", err)
	}

	return c, nil
}

func (o *rootOptions) newEngine(cmd *cobra.Command) (*remoteop.Engine, error) {
	config, err := remoteop.LoadConfigFile(o.configFile, setupLog)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("qps") {
		config.QPS = o.qps
	}

	if cmd.Flags().Changed("burst") {
		config.Burst = o.burst
	}

	c, err := o.newClient()
	if err != nil {
		return nil, err
	}

	return remoteop.NewEngine(remoteop.ClientStore{Client: c}, config, ctrl.Log.WithName("remoteop")), nil
}

func (o *rootOptions) printResult(out io.Writer, result *remoteop.Result) error {
	summary := map[string]interface{}{
		"type":   result.ConditionType,
		"reason": result.Reason,
	}

	if result.Message != "" {
		summary["message"] = result.Message
	}

	if len(result.Result.Raw) != 0 {
		summary["result"] = json.RawMessage(result.Result.Raw)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	switch o.output {
	case "json":
		data = append(data, '\n')
	case "yaml":
		if data, err = yaml.JSONToYAML(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}

	_, err = out.Write(data)

	return err
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
