package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSnapshotCommitsCollection(t *testing.T) {
	dir := t.TempDir()
	k, err := Open(dir, zap.NewNop().Sugar())
	require.NoError(t, err)

	k.Snapshot([]byte(`[{"id":"a"}]`))

	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(data))

	head, err := k.repo.Head()
	require.NoError(t, err)
	assert.False(t, head.Hash().IsZero())
}

func TestSnapshotSkipsIdenticalBlob(t *testing.T) {
	dir := t.TempDir()
	k, err := Open(dir, zap.NewNop().Sugar())
	require.NoError(t, err)

	k.Snapshot([]byte(`[{"id":"a"}]`))
	head1, err := k.repo.Head()
	require.NoError(t, err)

	k.Snapshot([]byte(`[{"id":"a"}]`))
	head2, err := k.repo.Head()
	require.NoError(t, err)

	assert.Equal(t, head1.Hash(), head2.Hash(), "identical blob must not produce a new commit")

	k.Snapshot([]byte(`[{"id":"a"},{"id":"b"}]`))
	head3, err := k.repo.Head()
	require.NoError(t, err)
	assert.NotEqual(t, head2.Hash(), head3.Hash())
}

func TestOpenReusesExistingRepository(t *testing.T) {
	dir := t.TempDir()

	k1, err := Open(dir, zap.NewNop().Sugar())
	require.NoError(t, err)
	k1.Snapshot([]byte(`[]`))
	head1, err := k1.repo.Head()
	require.NoError(t, err)

	k2, err := Open(dir, zap.NewNop().Sugar())
	require.NoError(t, err)
	head2, err := k2.repo.Head()
	require.NoError(t, err)

	assert.Equal(t, head1.Hash(), head2.Hash())
}
