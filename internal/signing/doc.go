// Package signing writes and checks armored detached OpenPGP signatures for
// built modules, using ProtonMail's maintained fork of x/crypto/openpgp.
package signing
