package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	b := []byte("curriculum vitae, revision 3")
	assert.Equal(t, Fingerprint(b), Fingerprint(b))
	assert.Len(t, Fingerprint(b), 32) // 128 bits, hex
}

func TestFingerprintSingleByteChange(t *testing.T) {
	a := []byte("curriculum vitae, revision 3")
	b := []byte("curriculum vitae, revision 4")
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintFileIgnoresName(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "cv_final.pdf")
	p2 := filepath.Join(dir, "cv_FINAL_v2.pdf")
	content := []byte("%PDF-1.4 fake cv bytes")
	require.NoError(t, os.WriteFile(p1, content, 0o644))
	require.NoError(t, os.WriteFile(p2, content, 0o644))

	f1, err := FingerprintFile(p1)
	require.NoError(t, err)
	f2, err := FingerprintFile(p2)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
}

func TestFingerprintFileUnreadable(t *testing.T) {
	_, err := FingerprintFile(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}

func TestFingerprintFileEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "empty.pdf")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	_, err := FingerprintFile(p)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}
