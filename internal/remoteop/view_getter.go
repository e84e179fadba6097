// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"context"

	volsyncv1alpha1 "github.com/backube/volsync/api/v1alpha1"
	csiaddonsv1alpha1 "github.com/csi-addons/kubernetes-csi-addons/apis/csiaddons/v1alpha1"
	volrep "github.com/csi-addons/kubernetes-csi-addons/apis/replication.storage/v1alpha1"
	snapv1 "github.com/kubernetes-csi/external-snapshotter/client/v4/apis/volumesnapshot/v1"
	errorswrapper "github.com/pkg/errors"
	velero "github.com/vmware-tanzu/velero/pkg/apis/velero/v1"
	corev1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ViewGetter reads typed resources from managed clusters through ManagedClusterViews.
// Errors for resources missing on the managed cluster satisfy k8serrors.IsNotFound.
type ViewGetter interface {
	GetResource(ctx context.Context, cluster string, gvk schema.GroupVersionKind,
		name, namespace string, resource interface{}) error

	GetNamespace(ctx context.Context, name, cluster string) (*corev1.Namespace, error)

	GetStorageClass(ctx context.Context, name, cluster string) (*storagev1.StorageClass, error)

	GetVolumeSnapshotClass(ctx context.Context, name, cluster string) (*snapv1.VolumeSnapshotClass, error)

	GetVolumeReplicationClass(ctx context.Context, name, cluster string) (*volrep.VolumeReplicationClass, error)

	GetNetworkFence(ctx context.Context, name, cluster string) (*csiaddonsv1alpha1.NetworkFence, error)

	GetReplicationSource(ctx context.Context, name, namespace, cluster string,
	) (*volsyncv1alpha1.ReplicationSource, error)

	GetBackup(ctx context.Context, name, namespace, cluster string) (*velero.Backup, error)
}

type ViewGetterImpl struct {
	Engine *Engine
}

var _ ViewGetter = ViewGetterImpl{}

// GetResource fetches the resource of type gvk named name in namespace (empty if
// cluster scoped) on cluster, and decodes it into resource.
func (v ViewGetterImpl) GetResource(ctx context.Context, cluster string, gvk schema.GroupVersionKind,
	name, namespace string, resource interface{},
) error {
	result, err := v.Engine.FireView(ctx, cluster, ViewPayloadFor(gvk, name, namespace))
	if err != nil {
		return errorswrapper.Wrapf(err, "failed to view %s %s on cluster %s", gvk.Kind, name, cluster)
	}

	return result.Into(resource)
}

func (v ViewGetterImpl) GetNamespace(ctx context.Context, name, cluster string) (*corev1.Namespace, error) {
	namespace := &corev1.Namespace{}

	err := v.GetResource(ctx, cluster, corev1.SchemeGroupVersion.WithKind("Namespace"), name, "", namespace)

	return namespace, err
}

func (v ViewGetterImpl) GetStorageClass(ctx context.Context, name, cluster string,
) (*storagev1.StorageClass, error) {
	sc := &storagev1.StorageClass{}

	err := v.GetResource(ctx, cluster, storagev1.SchemeGroupVersion.WithKind("StorageClass"), name, "", sc)

	return sc, err
}

func (v ViewGetterImpl) GetVolumeSnapshotClass(ctx context.Context, name, cluster string,
) (*snapv1.VolumeSnapshotClass, error) {
	vsc := &snapv1.VolumeSnapshotClass{}

	err := v.GetResource(ctx, cluster, snapv1.SchemeGroupVersion.WithKind("VolumeSnapshotClass"), name, "", vsc)

	return vsc, err
}

func (v ViewGetterImpl) GetVolumeReplicationClass(ctx context.Context, name, cluster string,
) (*volrep.VolumeReplicationClass, error) {
	vrc := &volrep.VolumeReplicationClass{}

	err := v.GetResource(ctx, cluster, volrep.GroupVersion.WithKind("VolumeReplicationClass"), name, "", vrc)

	return vrc, err
}

func (v ViewGetterImpl) GetNetworkFence(ctx context.Context, name, cluster string,
) (*csiaddonsv1alpha1.NetworkFence, error) {
	nf := &csiaddonsv1alpha1.NetworkFence{}

	err := v.GetResource(ctx, cluster, csiaddonsv1alpha1.GroupVersion.WithKind("NetworkFence"), name, "", nf)

	return nf, err
}

func (v ViewGetterImpl) GetReplicationSource(ctx context.Context, name, namespace, cluster string,
) (*volsyncv1alpha1.ReplicationSource, error) {
	rs := &volsyncv1alpha1.ReplicationSource{}

	err := v.GetResource(ctx, cluster, volsyncv1alpha1.GroupVersion.WithKind("ReplicationSource"),
		name, namespace, rs)

	return rs, err
}

func (v ViewGetterImpl) GetBackup(ctx context.Context, name, namespace, cluster string) (*velero.Backup, error) {
	backup := &velero.Backup{}

	err := v.GetResource(ctx, cluster, velero.SchemeGroupVersion.WithKind("Backup"), name, namespace, backup)

	return backup, err
}
