// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	actionv1beta1 "github.com/stolostron/multicloud-operators-foundation/pkg/apis/action/v1beta1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"

	"github.com/red-hat-storage/odf-console-sub009/internal/remoteop"
)

var configMapGVK = schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}

func createConfigMapPayload() remoteop.ActionPayload {
	return remoteop.ActionPayload{
		ActionType:  actionv1beta1.CreateActionType,
		ResourceGVK: configMapGVK,
		Name:        "dr-settings",
		Namespace:   "busybox",
		Template: map[string]interface{}{
			"apiVersion": "v1",
			"kind":       "ConfigMap",
			"metadata":   map[string]interface{}{"name": "dr-settings", "namespace": "busybox"},
			"data":       map[string]interface{}{"interval": "5m"},
		},
	}
}

func storageClassView() remoteop.ViewPayload {
	return remoteop.ViewPayload{
		Name:    "ocs-storagecluster-ceph-rbd",
		Kind:    "StorageClass",
		Group:   "storage.k8s.io",
		Version: "v1",
	}
}

func onlyRequestKey(store *fakeStore) types.NamespacedName {
	created := store.createdObjects()
	Expect(created).To(HaveLen(1))

	return types.NamespacedName{Name: created[0].GetName(), Namespace: created[0].GetNamespace()}
}

// cancelOnStatusStore ends the caller's context as soon as a read returns a status.
type cancelOnStatusStore struct {
	remoteop.RemoteStore

	cancel context.CancelFunc
}

func (s *cancelOnStatusStore) Get(ctx context.Context, gvk schema.GroupVersionKind, key types.NamespacedName,
) (*unstructured.Unstructured, error) {
	obj, err := s.RemoteStore.Get(ctx, gvk, key)
	if err == nil && obj.Object["status"] != nil {
		s.cancel()
	}

	return obj, err
}

var _ = Describe("Fire", func() {
	var (
		ctx   context.Context
		store *fakeStore
	)

	BeforeEach(func() {
		ctx = context.TODO()
		store = newFakeStore()
	})

	Context("when the agent reports success", func() {
		It("resolves with the action result after the second read and deletes the request once", func() {
			store.withStatus(2, agentStatus(actionv1beta1.ConditionActionCompleted, remoteop.ReasonActionDone, "",
				map[string]interface{}{"ok": true}))

			result, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ConditionType).To(Equal("Completed"))
			Expect(result.Reason).To(Equal("ActionDone"))

			decoded := map[string]interface{}{}
			Expect(result.Into(&decoded)).To(Succeed())
			Expect(decoded).To(Equal(map[string]interface{}{"ok": true}))

			key := onlyRequestKey(store)
			Expect(key.Namespace).To(Equal("cluster-b"))
			Expect(store.getCount(key)).To(Equal(2))
			Expect(store.deleteCount()).To(Equal(1))
			Expect(store.eventLog()).To(Equal([]string{"create", "get", "get", "delete"}))
			Expect(store.remaining()).To(BeZero())
		})

		It("resolves on a later read within the budget", func() {
			store.withStatus(7, agentStatus("Processing", "GetResourceProcessing", "Watching resources successfully",
				map[string]interface{}{"kind": "StorageClass"}))

			result, err := newTestEngine(store).FireView(ctx, "cluster-a", storageClassView())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Watching resources successfully"))
			Expect(store.getCount(onlyRequestKey(store))).To(Equal(7))
			Expect(store.deleteCount()).To(Equal(1))
		})

		It("fails fast when the status carries no conditions", func() {
			store.withStatus(1, map[string]interface{}{"conditions": []interface{}{}})

			_, err := newTestEngine(store).FireView(ctx, "cluster-a", storageClassView())

			var ambiguous *remoteop.AmbiguousFailure
			Expect(errors.As(err, &ambiguous)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("work-manager"))
			Expect(store.totalGets()).To(Equal(1))
			Expect(store.deleteCount()).To(Equal(1))
		})

		It("fails fast on an empty status", func() {
			store.withStatus(1, map[string]interface{}{})

			_, err := newTestEngine(store).FireView(ctx, "cluster-a", storageClassView())

			var ambiguous *remoteop.AmbiguousFailure
			Expect(errors.As(err, &ambiguous)).To(BeTrue())
			Expect(store.totalGets()).To(Equal(1))
			Expect(store.remaining()).To(BeZero())
		})
	})

	Context("when the agent never writes status", func() {
		It("times out after the poll budget and deletes the request before returning", func() {
			_, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())

			var timeoutErr *remoteop.TimeoutError
			Expect(errors.As(err, &timeoutErr)).To(BeTrue())
			Expect(timeoutErr.Attempts).To(Equal(testMaxAttempts))
			Expect(err.Error()).To(ContainSubstring(timeoutErr.Request.Name))
			Expect(err.Error()).To(ContainSubstring("cluster-b"))

			key := onlyRequestKey(store)
			Expect(store.getCount(key)).To(Equal(testMaxAttempts))

			events := store.eventLog()
			Expect(events[len(events)-1]).To(Equal("delete"))
			Expect(store.deleteCount()).To(Equal(1))

			times := store.getTimes[key]
			for i := 1; i < len(times); i++ {
				Expect(times[i].Sub(times[i-1])).To(BeNumerically(">=", testInterval))
			}
		})

		It("uses the descriptor's budget when calling Fire directly", func() {
			d := remoteop.ViewDescriptor
			d.Poll = remoteop.PollConfig{MaxAttempts: 3, Interval: testInterval}

			_, err := remoteop.Fire(ctx, newTestEngine(store), &d, "cluster-a", storageClassView())
			Expect(remoteop.IsTimeout(err)).To(BeTrue())
			Expect(store.totalGets()).To(Equal(3))
		})
	})

	Context("when the agent reports failure", func() {
		It("rejects with the agent message", func() {
			store.withStatus(1, agentStatus("Completed", actionv1beta1.ReasonCreateResourceFailed,
				"configmaps \"dr-settings\" already exists", nil))

			_, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())

			var failure *remoteop.TerminalFailure
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(err.Error()).To(Equal("configmaps \"dr-settings\" already exists"))
			Expect(remoteop.IsRequestFailure(err)).To(BeTrue())
			Expect(store.deleteCount()).To(Equal(1))
		})

		It("rejects with the default message when the agent gives none", func() {
			store.withStatus(1, agentStatus("Completed", actionv1beta1.ReasonCreateResourceFailed, "", nil))

			_, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())
			Expect(err).To(MatchError(remoteop.ActionDescriptor.FailureMessage))
		})

		It("treats an unfinished reason of the expected type as a failure", func() {
			store.withStatus(1, agentStatus("Processing", "GetResourceWatching", "still watching", nil))

			_, err := newTestEngine(store).FireView(ctx, "cluster-a", storageClassView())

			var failure *remoteop.TerminalFailure
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.Reason).To(Equal("GetResourceWatching"))
			Expect(store.totalGets()).To(Equal(1))
			Expect(store.deleteCount()).To(Equal(1))
		})

		It("reports a missing remote resource as NotFound", func() {
			store.withStatus(1, agentStatus("Processing", "GetResourceFailed",
				"failed to get resource with err: storageclasses.storage.k8s.io \"gold\" not found", nil))

			_, err := newTestEngine(store).FireView(ctx, "cluster-a", storageClassView())
			Expect(k8serrors.IsNotFound(err)).To(BeTrue())
		})

		It("does not report an action failure as NotFound", func() {
			store.withStatus(1, agentStatus("Completed", actionv1beta1.ReasonDeleteResourceFailed,
				"configmaps \"dr-settings\" not found", nil))

			_, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())

			var failure *remoteop.TerminalFailure
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.NotFound).To(BeFalse())
			Expect(k8serrors.IsNotFound(err)).To(BeFalse())
		})

		It("points at the work-manager when the condition is unknown", func() {
			store.withStatus(1, agentStatus("Degraded", "AgentUnavailable", "", nil))

			_, err := newTestEngine(store).FireView(ctx, "cluster-a", storageClassView())

			var ambiguous *remoteop.AmbiguousFailure
			Expect(errors.As(err, &ambiguous)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("work-manager"))
			Expect(err.Error()).To(ContainSubstring("cluster-a"))
			Expect(store.deleteCount()).To(Equal(1))
		})
	})

	Context("when reading the request fails", func() {
		It("returns right after the failed read without deleting the request", func() {
			store.getHook = func(_ types.NamespacedName, n int) error {
				if n == 3 {
					return errors.New("connection refused")
				}

				return nil
			}

			_, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())

			var transportErr *remoteop.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(transportErr.Attempt).To(Equal(3))
			Expect(store.totalGets()).To(Equal(3))
			Expect(store.deleteCount()).To(BeZero())
			Expect(store.remaining()).To(Equal(1))
		})
	})

	Context("when deleting the request", func() {
		It("ignores a request that is already gone", func() {
			store.withStatus(1, agentStatus("Completed", "ActionDone", "", nil))
			store.deleteErr = k8serrors.NewNotFound(schema.GroupResource{}, "mca-00001")

			result, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reason).To(Equal("ActionDone"))
		})

		It("keeps a failure outcome when the request is already gone", func() {
			store.withStatus(1, agentStatus("Completed", actionv1beta1.ReasonDeleteResourceFailed, "forbidden", nil))
			store.deleteErr = k8serrors.NewNotFound(schema.GroupResource{}, "mca-00001")

			_, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())
			Expect(err).To(MatchError("forbidden"))
		})

		It("reports a failed delete in place of the classified outcome", func() {
			store.withStatus(1, agentStatus("Completed", actionv1beta1.ReasonCreateResourceFailed, "quota exceeded", nil))
			store.deleteErr = errors.New("etcdserver: request timed out")

			_, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())

			var cleanupErr *remoteop.CleanupError
			Expect(errors.As(err, &cleanupErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("etcdserver: request timed out"))
			Expect(cleanupErr.Superseded).To(MatchError("quota exceeded"))
		})

		It("reports a failed delete after success without a result", func() {
			store.withStatus(1, agentStatus("Completed", "ActionDone", "", nil))
			store.deleteErr = errors.New("etcdserver: request timed out")

			result, err := newTestEngine(store).FireAction(ctx, "cluster-b", createConfigMapPayload())

			var cleanupErr *remoteop.CleanupError
			Expect(errors.As(err, &cleanupErr)).To(BeTrue())
			Expect(cleanupErr.Superseded).To(BeNil())
			Expect(result).To(BeNil())
		})
	})

	Context("when creating the request fails", func() {
		It("returns the create error without polling or cleanup", func() {
			store.createErr = errors.New("namespaces \"cluster-z\" not found")

			_, err := newTestEngine(store).FireAction(ctx, "cluster-z", createConfigMapPayload())

			var dispatchErr *remoteop.DispatchError
			Expect(errors.As(err, &dispatchErr)).To(BeTrue())
			Expect(dispatchErr.Cluster).To(Equal("cluster-z"))
			Expect(store.eventLog()).To(Equal([]string{"create"}))
		})

		It("rejects an empty target before creating anything", func() {
			_, err := newTestEngine(store).FireView(ctx, "", storageClassView())
			Expect(errors.Is(err, remoteop.ErrInvalidTarget)).To(BeTrue())
			Expect(store.eventLog()).To(BeEmpty())
		})

		It("rejects a target that cannot be a namespace", func() {
			_, err := newTestEngine(store).FireView(ctx, "Cluster_B", storageClassView())
			Expect(errors.Is(err, remoteop.ErrInvalidTarget)).To(BeTrue())
			Expect(store.eventLog()).To(BeEmpty())
		})

		It("rejects a create action without a template", func() {
			payload := createConfigMapPayload()
			payload.Template = nil

			_, err := newTestEngine(store).FireAction(ctx, "cluster-b", payload)
			Expect(errors.Is(err, remoteop.ErrInvalidPayload)).To(BeTrue())
			Expect(store.eventLog()).To(BeEmpty())
		})
	})

	Context("when the caller cancels", func() {
		It("stops polling and deletes the request", func() {
			cancelCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			store.getHook = func(_ types.NamespacedName, n int) error {
				if n == 2 {
					cancel()
				}

				return nil
			}

			_, err := newTestEngine(store).FireAction(cancelCtx, "cluster-b", createConfigMapPayload())

			var canceledErr *remoteop.CanceledError
			Expect(errors.As(err, &canceledErr)).To(BeTrue())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(store.totalGets()).To(Equal(2))
			Expect(store.deleteCount()).To(Equal(1))
			Expect(store.remaining()).To(BeZero())
		})
	})

	Context("when the caller cancels right after the agent answered", func() {
		It("still deletes the request and reports the outcome", func() {
			cancelCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			store.withStatus(2, agentStatus("Completed", "ActionDone", "", nil))
			limited := &cancelOnStatusStore{
				RemoteStore: remoteop.NewRateLimitedStore(store, 1000, 10),
				cancel:      cancel,
			}

			result, err := newTestEngine(limited).FireAction(cancelCtx, "cluster-b", createConfigMapPayload())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reason).To(Equal("ActionDone"))
			Expect(cancelCtx.Err()).To(HaveOccurred())
			Expect(store.deleteCount()).To(Equal(1))
			Expect(store.remaining()).To(BeZero())
		})
	})

	Context("with concurrent calls", func() {
		It("keeps identities and budgets independent", func() {
			// cluster-b's agent answers on the second read, cluster-a's never does.
			answering := agentStatus("Completed", "ActionDone", "", map[string]interface{}{"ok": true})
			store.getHook = func(key types.NamespacedName, n int) error {
				if key.Namespace == "cluster-b" && n == 2 {
					store.mu.Lock()
					store.objects[key].Object["status"] = runtimeCopy(answering)
					store.mu.Unlock()
				}

				return nil
			}

			engine := newTestEngine(store)

			var (
				wg         sync.WaitGroup
				errA, errB error
				resultB    *remoteop.Result
			)

			wg.Add(2)

			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				_, errA = engine.FireAction(ctx, "cluster-a", createConfigMapPayload())
			}()

			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				resultB, errB = engine.FireAction(ctx, "cluster-b", createConfigMapPayload())
			}()

			wg.Wait()

			Expect(remoteop.IsTimeout(errA)).To(BeTrue())
			Expect(errB).NotTo(HaveOccurred())
			Expect(resultB.Reason).To(Equal("ActionDone"))

			created := store.createdObjects()
			Expect(created).To(HaveLen(2))
			Expect(created[0].GetName()).NotTo(Equal(created[1].GetName()))

			for _, obj := range created {
				key := types.NamespacedName{Name: obj.GetName(), Namespace: obj.GetNamespace()}

				switch obj.GetNamespace() {
				case "cluster-a":
					Expect(store.getCount(key)).To(Equal(testMaxAttempts))
				case "cluster-b":
					Expect(store.getCount(key)).To(Equal(2))
				default:
					Fail("unexpected namespace " + obj.GetNamespace())
				}
			}

			Expect(store.deleteCount()).To(Equal(2))
		})
	})
})

var _ = Describe("Request objects", func() {
	var store *fakeStore

	BeforeEach(func() {
		store = newFakeStore().withStatus(1, agentStatus("Completed", "ActionDone", "", nil))
	})

	It("builds a ManagedClusterAction in the cluster namespace", func() {
		_, err := newTestEngine(store).FireAction(context.TODO(), "cluster-b", createConfigMapPayload())
		Expect(err).NotTo(HaveOccurred())

		obj := store.createdObjects()[0]
		Expect(obj.GroupVersionKind()).To(Equal(remoteop.ManagedClusterActionGVK))
		Expect(obj.GetGenerateName()).To(Equal("mca-"))
		Expect(obj.GetName()).To(HavePrefix("mca-"))
		Expect(obj.GetNamespace()).To(Equal("cluster-b"))
		Expect(obj.GetLabels()).To(HaveKeyWithValue(remoteop.ManagedByLabel, remoteop.ManagedByValue))
		Expect(obj.GetLabels()).To(HaveKey(remoteop.OperationIDLabel))

		expectField := func(value interface{}, fields ...string) {
			got, found, err := unstructured.NestedFieldNoCopy(obj.Object, append([]string{"spec"}, fields...)...)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue(), "spec.%v", fields)
			Expect(got).To(Equal(value))
		}

		expectField("cluster-b", "cluster", "name")
		expectField("Action", "type")
		expectField("ConfigMap.v1", "scope", "resourceType")
		expectField("busybox", "scope", "namespace")
		expectField("Create", "actionType")
		expectField("ConfigMap.v1", "kube", "resource")
		expectField("dr-settings", "kube", "name")
		expectField("busybox", "kube", "namespace")
		expectField("5m", "kube", "template", "data", "interval")
	})

	It("builds a ManagedClusterView scoped to the resource", func() {
		store.withStatus(1, agentStatus("Processing", "GetResourceProcessing", "", nil))

		payload := remoteop.ViewPayload{
			Name:      "busybox-rs",
			Namespace: "busybox",
			Kind:      "ReplicationSource",
			Group:     "volsync.backube",
			Version:   "v1alpha1",
		}

		_, err := newTestEngine(store).FireView(context.TODO(), "cluster-a", payload)
		Expect(err).NotTo(HaveOccurred())

		obj := store.createdObjects()[0]
		Expect(obj.GroupVersionKind()).To(Equal(remoteop.ManagedClusterViewGVK))
		Expect(obj.GetName()).To(HavePrefix("mcv-"))

		scope, found, err := unstructured.NestedStringMap(obj.Object, "spec", "scope")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(scope).To(Equal(map[string]string{
			"name":      "busybox-rs",
			"namespace": "busybox",
			"kind":      "ReplicationSource",
			"apiGroup":  "volsync.backube",
			"version":   "v1alpha1",
		}))
	})

	It("gives each call its own operation id", func() {
		engine := newTestEngine(store)

		for i := 0; i < 2; i++ {
			_, err := engine.FireAction(context.TODO(), "cluster-b", createConfigMapPayload())
			Expect(err).NotTo(HaveOccurred())
		}

		created := store.createdObjects()
		Expect(created[0].GetLabels()[remoteop.OperationIDLabel]).
			NotTo(Equal(created[1].GetLabels()[remoteop.OperationIDLabel]))
	})
})
