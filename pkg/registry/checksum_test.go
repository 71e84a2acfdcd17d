package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestComputePackChecksum_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writePackFile(t, dir, "pack.toml", "name = \"demo\"\n")
	writePackFile(t, dir, "agents/coder.yaml", "name: coder\n")

	first, err := ComputePackChecksum(dir)
	require.NoError(t, err)
	require.Len(t, first, 64, "sha256 hex digest")

	second, err := ComputePackChecksum(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputePackChecksum_OrderIndependent(t *testing.T) {
	a := t.TempDir()
	writePackFile(t, a, "alpha.yaml", "a: 1\n")
	writePackFile(t, a, "beta.yaml", "b: 2\n")

	b := t.TempDir()
	writePackFile(t, b, "beta.yaml", "b: 2\n")
	writePackFile(t, b, "alpha.yaml", "a: 1\n")

	sumA, err := ComputePackChecksum(a)
	require.NoError(t, err)
	sumB, err := ComputePackChecksum(b)
	require.NoError(t, err)
	assert.Equal(t, sumA, sumB, "write order must not affect the checksum")
}

func TestComputePackChecksum_SensitiveToChanges(t *testing.T) {
	base := t.TempDir()
	writePackFile(t, base, "agents/coder.yaml", "name: coder\n")
	baseSum, err := ComputePackChecksum(base)
	require.NoError(t, err)

	t.Run("renamed file", func(t *testing.T) {
		dir := t.TempDir()
		writePackFile(t, dir, "agents/reviewer.yaml", "name: coder\n")
		sum, err := ComputePackChecksum(dir)
		require.NoError(t, err)
		assert.NotEqual(t, baseSum, sum)
	})

	t.Run("edited content", func(t *testing.T) {
		dir := t.TempDir()
		writePackFile(t, dir, "agents/coder.yaml", "name: coder\nversion: 2.0.0\n")
		sum, err := ComputePackChecksum(dir)
		require.NoError(t, err)
		assert.NotEqual(t, baseSum, sum)
	})

	t.Run("added file", func(t *testing.T) {
		dir := t.TempDir()
		writePackFile(t, dir, "agents/coder.yaml", "name: coder\n")
		writePackFile(t, dir, "agents/extra.yaml", "name: extra\n")
		sum, err := ComputePackChecksum(dir)
		require.NoError(t, err)
		assert.NotEqual(t, baseSum, sum)
	})
}

func TestComputePackChecksum_MissingDir(t *testing.T) {
	_, err := ComputePackChecksum(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
