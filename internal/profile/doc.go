// Package profile resolves a platform version identifier into the artifacts of an
// ADB root module: the update-binary installer, module.prop metadata, the
// sepolicy.rule access grants and the optional replacement adbd payload.
//
// Each identifier maps to one Profile record in a fixed table. Resolution is a
// pure function of the identifier, the API level and the resolver options; it
// performs no I/O and cannot fail. Unknown identifiers resolve as Universal.
package profile
