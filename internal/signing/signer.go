package signing

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const (
	// SignatureExt is appended to the archive path for the detached signature.
	SignatureExt = ".asc"
	// PassphraseEnv names the environment variable holding the key passphrase.
	PassphraseEnv = "ADBROOT_SIGNING_PASSPHRASE"
	// signatureMode is the permission of written signatures.
	signatureMode os.FileMode = 0o644
)

var (
	// ErrNoSigningKey is returned when the key file holds no usable private key.
	ErrNoSigningKey = errors.New("no private signing key found")
	// ErrPassphraseRequired is returned for an encrypted key without a passphrase.
	ErrPassphraseRequired = errors.New("signing key is encrypted and no passphrase was given")
	// ErrBadSignature is returned when a detached signature does not verify.
	ErrBadSignature = errors.New("signature verification failed")
)

// Signer produces armored detached OpenPGP signatures.
type Signer struct {
	// entity holds the decrypted private key.
	entity *openpgp.Entity
}

// LoadSigner reads an armored private key and decrypts it with passphrase when needed.
func LoadSigner(keyFile string, passphrase []byte) (*Signer, error) {
	f, err := os.Open(filepath.Clean(keyFile))
	if err != nil {
		return nil, fmt.Errorf("open signing key: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	for _, entity := range entities {
		if entity.PrivateKey == nil {
			continue
		}

		if err = decrypt(entity, passphrase); err != nil {
			return nil, err
		}

		return &Signer{entity: entity}, nil
	}

	return nil, ErrNoSigningKey
}

// decrypt unlocks the primary key and any encrypted subkeys.
func decrypt(entity *openpgp.Entity, passphrase []byte) error {
	keys := []*openpgp.Subkey{{PrivateKey: entity.PrivateKey}}
	for i := range entity.Subkeys {
		keys = append(keys, &entity.Subkeys[i])
	}

	for _, key := range keys {
		if key.PrivateKey == nil || !key.PrivateKey.Encrypted {
			continue
		}

		if len(passphrase) == 0 {
			return ErrPassphraseRequired
		}

		if err := key.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("decrypt signing key: %w", err)
		}
	}

	return nil
}

// KeyID returns the primary key id in hex.
func (s *Signer) KeyID() string {
	return fmt.Sprintf("%016X", s.entity.PrimaryKey.KeyId)
}

// SignFile writes an armored detached signature of path to path+SignatureExt and returns its path.
func (s *Signer) SignFile(path string) (string, error) {
	signature, err := s.Sign(path)
	if err != nil {
		return "", err
	}

	return WriteSignature(path, signature)
}

// Sign returns an armored detached signature of the file at path.
func (s *Signer) Sign(path string) ([]byte, error) {
	data, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open signed file: %w", err)
	}

	defer func() {
		_ = data.Close()
	}()

	var signature bytes.Buffer

	if err = openpgp.ArmoredDetachSign(&signature, s.entity, data, nil); err != nil {
		return nil, fmt.Errorf("sign %s: %w", path, err)
	}

	signature.WriteByte('\n')

	return signature.Bytes(), nil
}

// WriteSignature stores signature next to path as path+SignatureExt and returns its path.
// The signature is staged and renamed, so a failed run leaves no partial file.
func WriteSignature(path string, signature []byte) (string, error) {
	sigPath := path + SignatureExt

	tmp, err := os.CreateTemp(filepath.Dir(sigPath), "."+filepath.Base(sigPath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create signature file: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(signature); err != nil {
		_ = tmp.Close()

		return "", fmt.Errorf("write signature: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close signature: %w", err)
	}

	if err = os.Chmod(tmp.Name(), signatureMode); err != nil {
		return "", fmt.Errorf("chmod signature: %w", err)
	}

	if err = os.Rename(tmp.Name(), sigPath); err != nil {
		return "", fmt.Errorf("move signature into place: %w", err)
	}

	committed = true

	return sigPath, nil
}

// Verify checks the detached signature at sigPath over path against the armored keyring
// in keyFile and returns the signer's key id.
func Verify(keyFile, path, sigPath string) (string, error) {
	keyring, err := readKeyring(keyFile)
	if err != nil {
		return "", err
	}

	data, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open signed file: %w", err)
	}

	defer func() {
		_ = data.Close()
	}()

	sig, err := os.Open(filepath.Clean(sigPath))
	if err != nil {
		return "", fmt.Errorf("open signature: %w", err)
	}

	defer func() {
		_ = sig.Close()
	}()

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, data, sig, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	return fmt.Sprintf("%016X", signer.PrimaryKey.KeyId), nil
}

// readKeyring loads an armored public or private keyring.
func readKeyring(keyFile string) (openpgp.EntityList, error) {
	f, err := os.Open(filepath.Clean(keyFile))
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	return keyring, nil
}
