package profile

import "strings"

// Identifier names a target platform version family.
type Identifier string

// Supported identifiers. The set is closed: anything else resolves as Universal.
const (
	// V9 targets Android 9 (API 28) with a replacement adbd binary.
	V9 Identifier = "v9"
	// V10 targets Android 10 (API 29) with policy changes only.
	V10 Identifier = "v10"
	// V11And12 targets Android 11 and 12 (API 30-32) with a replacement binary and minijail grants.
	V11And12 Identifier = "v11_12"
	// Universal detects the platform on the device and adapts at install time.
	Universal Identifier = "universal"
)

// aliases maps accepted spellings to identifiers.
//
//nolint:gochecknoglobals // Read-only lookup table.
var aliases = map[string]Identifier{
	"v9":        V9,
	"9":         V9,
	"android9":  V9,
	"pie":       V9,
	"v10":       V10,
	"10":        V10,
	"android10": V10,
	"v11_12":    V11And12,
	"v11":       V11And12,
	"v12":       V11And12,
	"11":        V11And12,
	"12":        V11And12,
	"android11": V11And12,
	"android12": V11And12,
	"universal": Universal,
}

// ParseIdentifier maps user input to an identifier.
// It never fails: unrecognized input degrades to Universal.
// The second result reports whether the input was recognized.
func ParseIdentifier(s string) (Identifier, bool) {
	id, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Universal, false
	}

	return id, true
}

// Identifiers returns every supported identifier in display order.
func Identifiers() []Identifier {
	return []Identifier{V9, V10, V11And12, Universal}
}

// String implements fmt.Stringer.
func (id Identifier) String() string {
	return string(id)
}
