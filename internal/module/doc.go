// Package module maps a resolved artifact set onto the fixed zip layout the
// Magisk loader accepts and names the resulting archive.
package module
