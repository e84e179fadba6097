// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/yaml"
)

const defaultCleanupTimeout = 5 * time.Second

// PollSettings is the file form of PollConfig.
type PollSettings struct {
	MaxAttempts          int `json:"maxAttempts,omitempty"`
	IntervalMilliseconds int `json:"intervalMilliseconds,omitempty"`
}

// RemoteOperationConfig is loaded from the --config file.
type RemoteOperationConfig struct {
	ActionPoll PollSettings `json:"actionPoll,omitempty"`
	ViewPoll   PollSettings `json:"viewPoll,omitempty"`

	// CleanupTimeoutSeconds bounds the best-effort delete issued after cancellation.
	CleanupTimeoutSeconds int `json:"cleanupTimeoutSeconds,omitempty"`

	// QPS and Burst rate limit all request object reads and writes. Zero QPS disables it.
	QPS   float64 `json:"qps,omitempty"`
	Burst int     `json:"burst,omitempty"`
}

func (s PollSettings) pollConfig(fallback PollConfig) PollConfig {
	config := fallback

	if s.MaxAttempts > 0 {
		config.MaxAttempts = s.MaxAttempts
	}

	if s.IntervalMilliseconds > 0 {
		config.Interval = time.Duration(s.IntervalMilliseconds) * time.Millisecond
	}

	return config.withDefaults()
}

// ActionPollConfig returns the action poll budget, falling back to ActionDescriptor's.
func (c RemoteOperationConfig) ActionPollConfig() PollConfig {
	return c.ActionPoll.pollConfig(ActionDescriptor.Poll)
}

// ViewPollConfig returns the view poll budget, falling back to ViewDescriptor's.
func (c RemoteOperationConfig) ViewPollConfig() PollConfig {
	return c.ViewPoll.pollConfig(ViewDescriptor.Poll)
}

func (c RemoteOperationConfig) CleanupTimeout() time.Duration {
	if c.CleanupTimeoutSeconds <= 0 {
		return defaultCleanupTimeout
	}

	return time.Duration(c.CleanupTimeoutSeconds) * time.Second
}

func (c RemoteOperationConfig) validate() error {
	if c.ActionPoll.MaxAttempts < 0 || c.ViewPoll.MaxAttempts < 0 {
		return fmt.Errorf("maxAttempts must not be negative")
	}

	if c.ActionPoll.IntervalMilliseconds < 0 || c.ViewPoll.IntervalMilliseconds < 0 {
		return fmt.Errorf("intervalMilliseconds must not be negative")
	}

	if c.QPS < 0 || c.Burst < 0 {
		return fmt.Errorf("qps and burst must not be negative")
	}

	return nil
}

// LoadConfigFile reads a RemoteOperationConfig from a YAML file. An empty file name
// returns the defaults.
func LoadConfigFile(configFile string, log logr.Logger) (config RemoteOperationConfig, err error) {
	if configFile == "" {
		log.Info("Remote operation config file not specified, using defaults")

		return
	}

	log.Info("loading remote operation configuration from", "file", configFile)

	fileContents, err := os.ReadFile(configFile)
	if err != nil {
		err = fmt.Errorf("unable to load the config file %s: %w", configFile, err)

		return
	}

	err = yaml.UnmarshalStrict(fileContents, &config)
	if err != nil {
		err = fmt.Errorf("unable to unmarshal the config file %s: %w", configFile, err)

		return
	}

	if err = config.validate(); err != nil {
		err = fmt.Errorf("invalid config file %s: %w", configFile, err)
	}

	return
}
