package signing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/require"
)

// writeTestKeys creates a fresh key pair and stores armored private and public keyrings in dir.
func writeTestKeys(t *testing.T, dir string) (string, string) {
	t.Helper()

	entity, err := openpgp.NewEntity("adbroot-builder", "test", "builder@example.com", nil)
	require.NoError(t, err)

	privatePath := filepath.Join(dir, "private.asc")
	publicPath := filepath.Join(dir, "public.asc")

	privateFile, err := os.Create(privatePath)
	require.NoError(t, err)

	w, err := armor.Encode(privateFile, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(w, nil))
	require.NoError(t, w.Close())
	require.NoError(t, privateFile.Close())

	publicFile, err := os.Create(publicPath)
	require.NoError(t, err)

	w, err = armor.Encode(publicFile, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())
	require.NoError(t, publicFile.Close())

	return privatePath, publicPath
}

// TestSignAndVerify signs a file and checks the detached signature against the public key.
func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	privatePath, publicPath := writeTestKeys(t, dir)

	archivePath := filepath.Join(dir, "adb_root_android9-v2.0-android9.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("archive bytes"), 0o600))

	signer, err := LoadSigner(privatePath, nil)
	require.NoError(t, err)
	require.Len(t, signer.KeyID(), 16)

	sigPath, err := signer.SignFile(archivePath)
	require.NoError(t, err)
	require.Equal(t, archivePath+SignatureExt, sigPath)

	sig, err := os.ReadFile(sigPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(sig), "-----BEGIN PGP SIGNATURE-----"))

	keyID, err := Verify(publicPath, archivePath, sigPath)
	require.NoError(t, err)
	require.Equal(t, signer.KeyID(), keyID)

	// Tampering breaks the signature.
	require.NoError(t, os.WriteFile(archivePath, []byte("archive bytes!"), 0o600))

	_, err = Verify(publicPath, archivePath, sigPath)
	require.ErrorIs(t, err, ErrBadSignature)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 4, "keys, archive and signature only")
}

// TestLoadSigner_Errors covers missing files and public-only keyrings.
func TestLoadSigner_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, publicPath := writeTestKeys(t, dir)

	_, err := LoadSigner(filepath.Join(dir, "missing.asc"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadSigner(publicPath, nil)
	require.ErrorIs(t, err, ErrNoSigningKey)

	garbage := filepath.Join(dir, "garbage.asc")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key"), 0o600))

	_, err = LoadSigner(garbage, nil)
	require.Error(t, err)
}

// TestSignFile_MissingInput ensures no signature is written for a missing file.
func TestSignFile_MissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	privatePath, _ := writeTestKeys(t, dir)

	signer, err := LoadSigner(privatePath, nil)
	require.NoError(t, err)

	_, err = signer.SignFile(filepath.Join(dir, "absent.zip"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(filepath.Join(dir, "absent.zip"+SignatureExt))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestSign_StagedFileVerifiesAfterRename signs a staged file and publishes the signature for its final name.
func TestSign_StagedFileVerifiesAfterRename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	privatePath, publicPath := writeTestKeys(t, dir)

	signer, err := LoadSigner(privatePath, nil)
	require.NoError(t, err)

	staged := filepath.Join(dir, ".module.zip.tmp")
	final := filepath.Join(dir, "module.zip")
	require.NoError(t, os.WriteFile(staged, []byte("module bytes"), 0o600))

	signature, err := signer.Sign(staged)
	require.NoError(t, err)
	require.NoFileExists(t, staged+SignatureExt)

	require.NoError(t, os.Rename(staged, final))

	sigPath, err := WriteSignature(final, signature)
	require.NoError(t, err)
	require.Equal(t, final+SignatureExt, sigPath)

	_, err = Verify(publicPath, final, sigPath)
	require.NoError(t, err)
}
