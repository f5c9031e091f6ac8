package profile

// PayloadPolicy says whether a profile ships a replacement adbd binary.
type PayloadPolicy int

const (
	// PayloadReplace bundles a replacement binary under PayloadPath.
	PayloadReplace PayloadPolicy = iota
	// PayloadNone only enhances access rules; the installer deletes any copied binary.
	PayloadNone
)

// PayloadPath is the in-module path of the replacement debug daemon.
const PayloadPath = "system/bin/adbd"

// String implements fmt.Stringer.
func (p PayloadPolicy) String() string {
	if p == PayloadNone {
		return "policy-only"
	}

	return "binary-replacement"
}

// Release names a platform release inside a profile's API range.
type Release struct {
	// APILevel is the SDK level reported by ro.build.version.sdk.
	APILevel int
	// Slug is used in the module id, version and archive name.
	Slug string
}

// Profile describes everything generated for one identifier.
// Adding a platform version means adding a record to the profiles table.
type Profile struct {
	// ID is the identifier this record is registered under.
	ID Identifier
	// Title is the banner headline, e.g. "Android 10 Compatible".
	Title string
	// Strategy is a one-line description of the elevation approach.
	Strategy string
	// MinAPI and MaxAPI bound the expected API levels; zero means unbounded.
	MinAPI, MaxAPI int
	// DefaultAPI is used when the caller does not supply an API level.
	DefaultAPI int
	// DefaultSlug names releases without an entry in Releases.
	DefaultSlug string
	// Releases overrides the slug for specific API levels.
	Releases []Release
	// Payload is the payload inclusion rule.
	Payload PayloadPolicy
	// Policy holds the profile-specific blocks appended after the baseline.
	Policy []PolicyBlock

	// preflight runs after API_LEVEL is read and before install_module.
	preflight string
	// postInstall runs after install_module.
	postInstall string
	// success is printed after a completed install.
	success string
	// hint tells the user how to check the result after reboot.
	hint string
}

// ExpectsAPI reports whether apiLevel falls in the profile's expected range.
func (p *Profile) ExpectsAPI(apiLevel int) bool {
	if p.MinAPI > 0 && apiLevel < p.MinAPI {
		return false
	}

	if p.MaxAPI > 0 && apiLevel > p.MaxAPI {
		return false
	}

	return true
}

// SlugFor returns the release slug used for apiLevel.
func (p *Profile) SlugFor(apiLevel int) string {
	for _, release := range p.Releases {
		if release.APILevel == apiLevel {
			return release.Slug
		}
	}

	return p.DefaultSlug
}

// Lookup returns the profile registered for id, or the universal profile for unknown ids.
func Lookup(id Identifier) Profile {
	if p, ok := profiles[id]; ok {
		return *p
	}

	return *profiles[Universal]
}

const (
	removePayload  = `rm -f "$MODPATH/` + PayloadPath + `" 2>/dev/null || true`
	relabelPayload = `chcon u:object_r:system_file:s0 "$MODPATH/` + PayloadPath + `" 2>/dev/null || true`
)

// profiles is the dispatch table from identifier to profile record.
//
//nolint:gochecknoglobals // Read-only dispatch table.
var profiles = map[Identifier]*Profile{
	V9: {
		ID:          V9,
		Title:       "Android 9 Compatible",
		Strategy:    "Original Binary Replacement",
		MinAPI:      28,
		MaxAPI:      28,
		DefaultAPI:  28,
		DefaultSlug: "android9",
		Payload:     PayloadReplace,
		Policy:      android9Policy,
		preflight: `if [ "$API_LEVEL" != "28" ]; then
  ui_print "Warning: This module is optimized for Android 9 (API 28)"
fi`,
		success: "Installation complete!",
		hint:    "After reboot: adb root && adb shell id",
	},
	V10: {
		ID:          V10,
		Title:       "Android 10 Compatible",
		Strategy:    "SELinux Policy Enhancement Only",
		MinAPI:      29,
		MaxAPI:      29,
		DefaultAPI:  29,
		DefaultSlug: "android10",
		Payload:     PayloadNone,
		Policy:      android10Policy,
		preflight: `if [ "$API_LEVEL" != "29" ]; then
  ui_print "Warning: This module is optimized for Android 10 (API 29)"
fi`,
		// The generic install_module may still copy a binary; it breaks adbd on Android 10.
		postInstall: `ui_print "Preserving original adbd binary for Android 10 compatibility..."
` + removePayload,
		success: "SELinux policy enhancement applied",
		hint:    "After reboot: adb devices && adb root",
	},
	V11And12: {
		ID:          V11And12,
		Title:       "Android 11+ Compatible",
		Strategy:    "Enhanced Binary + Minijail Bypass",
		MinAPI:      30,
		MaxAPI:      32,
		DefaultAPI:  30,
		DefaultSlug: "android11",
		Releases: []Release{
			{APILevel: 31, Slug: "android12"},
			{APILevel: 32, Slug: "android12"},
		},
		Payload: PayloadReplace,
		Policy:  android11Policy,
		preflight: `if [ "$API_LEVEL" -lt 30 ]; then
  ui_print "Warning: This module is optimized for Android 11+ (API 30+)"
fi`,
		postInstall: `if [ "$API_LEVEL" -ge 30 ]; then
  ui_print "Applying enhanced SELinux policies..."
  ` + relabelPayload + `
fi`,
		success: "Enhanced binary with minijail bypass installed",
		hint:    "After reboot: adb root && adb shell id",
	},
	Universal: {
		ID:          Universal,
		Title:       "Universal Installer",
		Strategy:    "Auto-detecting Android version...",
		MinAPI:      28,
		DefaultAPI:  35,
		DefaultSlug: "universal",
		Payload:     PayloadReplace,
		preflight: `ANDROID_VERSION=$(getprop ro.build.version.release)
ui_print "Detected Android $ANDROID_VERSION (API $API_LEVEL)"

case "$API_LEVEL" in
  28)
    ui_print "Using Android 9 compatible method"
    ui_print "Binary replacement approach"
    ;;
  29)
    ui_print "Using Android 10 compatible method"
    ui_print "SELinux policy enhancement only"
    ;;
  30|31|32|33)
    ui_print "Using Android 11+ enhanced method"
    ui_print "Binary replacement + minijail bypass"
    ;;
  *)
    ui_print "Using experimental universal method"
    ui_print "May not work on all devices"
    ;;
esac`,
		postInstall: `if [ "$API_LEVEL" = "29" ]; then
  ui_print "Applying Android 10 compatibility fix..."
  ` + removePayload + `
  ui_print "Original adbd binary preserved"
fi`,
		success: "Installation complete!",
		hint:    "Test with: adb devices && adb root",
	},
}
