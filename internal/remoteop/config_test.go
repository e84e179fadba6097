// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/red-hat-storage/odf-console-sub009/internal/remoteop"
)

func tempDir() string {
	dir, err := os.MkdirTemp("", "remoteop-config")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(os.RemoveAll, dir)

	return dir
}

func writeConfigFile(contents string) string {
	file := filepath.Join(tempDir(), "remoteop-config.yaml")
	Expect(os.WriteFile(file, []byte(contents), 0o600)).To(Succeed())

	return file
}

var _ = Describe("RemoteOperationConfig", func() {
	It("uses the defaults without a config file", func() {
		config, err := remoteop.LoadConfigFile("", testLog)
		Expect(err).NotTo(HaveOccurred())

		Expect(config.ActionPollConfig()).To(Equal(remoteop.PollConfig{MaxAttempts: 20, Interval: 500 * time.Millisecond}))
		Expect(config.ViewPollConfig()).To(Equal(remoteop.PollConfig{MaxAttempts: 20, Interval: 500 * time.Millisecond}))
		Expect(config.CleanupTimeout()).To(Equal(5 * time.Second))
	})

	It("loads poll budgets, cleanup timeout and rate limits", func() {
		file := writeConfigFile(`
actionPoll:
  maxAttempts: 40
viewPoll:
  maxAttempts: 10
  intervalMilliseconds: 250
cleanupTimeoutSeconds: 30
qps: 20
burst: 40
`)

		config, err := remoteop.LoadConfigFile(file, testLog)
		Expect(err).NotTo(HaveOccurred())

		Expect(config.ActionPollConfig()).To(Equal(remoteop.PollConfig{MaxAttempts: 40, Interval: 500 * time.Millisecond}))
		Expect(config.ViewPollConfig()).To(Equal(remoteop.PollConfig{MaxAttempts: 10, Interval: 250 * time.Millisecond}))
		Expect(config.CleanupTimeout()).To(Equal(30 * time.Second))
		Expect(config.QPS).To(Equal(20.0))
		Expect(config.Burst).To(Equal(40))
	})

	It("rejects unknown fields", func() {
		_, err := remoteop.LoadConfigFile(writeConfigFile("pollAttempts: 5\n"), testLog)
		Expect(err).To(MatchError(ContainSubstring("unable to unmarshal the config file")))
	})

	It("rejects negative values", func() {
		_, err := remoteop.LoadConfigFile(writeConfigFile("viewPoll:\n  maxAttempts: -1\n"), testLog)
		Expect(err).To(MatchError(ContainSubstring("maxAttempts must not be negative")))
	})

	It("reports a missing file", func() {
		_, err := remoteop.LoadConfigFile(filepath.Join(tempDir(), "missing.yaml"), testLog)
		Expect(err).To(MatchError(ContainSubstring("unable to load the config file")))
	})

	It("configures the engine it builds", func() {
		config := remoteop.RemoteOperationConfig{
			ViewPoll:              remoteop.PollSettings{MaxAttempts: 3, IntervalMilliseconds: 1},
			CleanupTimeoutSeconds: 2,
		}

		store := newFakeStore()
		engine := remoteop.NewEngine(store, config, testLog)
		Expect(engine.Store).To(BeIdenticalTo(store))
		Expect(engine.CleanupTimeout).To(Equal(2 * time.Second))

		_, err := engine.FireView(context.TODO(), "cluster-a", storageClassView())
		Expect(remoteop.IsTimeout(err)).To(BeTrue())
		Expect(store.totalGets()).To(Equal(3))
	})
})
