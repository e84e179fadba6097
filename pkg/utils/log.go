// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"flag"

	"github.com/go-logr/logr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// ConfigureLogOptions returns the zap options shared by the binaries, with the zap
// flags (--zap-devel, --zap-log-level, ...) bound to fs.
func ConfigureLogOptions(fs *flag.FlagSet) *zap.Options {
	opts := &zap.Options{
		Development: true,
		ZapOpts: []uberzap.Option{
			uberzap.AddCaller(),
		},
		TimeEncoder: zapcore.ISO8601TimeEncoder,
	}

	opts.BindFlags(fs)

	return opts
}

// SetupLogger installs the zap logger built from opts as the controller-runtime
// logger and returns it.
func SetupLogger(opts *zap.Options) logr.Logger {
	logger := zap.New(zap.UseFlagOptions(opts))
	ctrl.SetLogger(logger)

	return logger
}
