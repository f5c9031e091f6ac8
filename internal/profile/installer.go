package profile

import (
	"fmt"
	"strings"
)

const bannerRule = "*******************************"

// LoaderLabel renders a loader version code such as 20400 as "v20.4+".
func LoaderLabel(code int) string {
	return fmt.Sprintf("v%d.%d+", code/1000, code%1000/100)
}

// buildInstaller composes the update-binary script for p.
//
// Every script checks the loader version and exits 1 when it is too old, prints a
// banner, runs install_module, runs the profile's post-install step and finishes
// with a success line and a usage hint.
func buildInstaller(p *Profile, apiLevel, minLoader int) string {
	var b strings.Builder

	b.WriteString("#!/sbin/sh\n")
	fmt.Fprintf(&b, "# ADB Root - %s\n", p.Title)
	fmt.Fprintf(&b, "# %s\n", p.Strategy)
	fmt.Fprintf(&b, "# Generated for API level %d\n\n", apiLevel)

	b.WriteString("umask 022\n")
	b.WriteString("ui_print() { echo \"$1\"; }\n\n")

	b.WriteString("require_new_magisk() {\n")
	fmt.Fprintf(&b, "  ui_print %q\n", bannerRule)
	fmt.Fprintf(&b, "  ui_print \" Please install Magisk %s! \"\n", LoaderLabel(minLoader))
	fmt.Fprintf(&b, "  ui_print %q\n", bannerRule)
	b.WriteString("  exit 1\n}\n\n")

	b.WriteString("OUTFD=$2\nZIPFILE=$3\n\n")

	b.WriteString("mount /data 2>/dev/null\n")
	b.WriteString("[ -f /data/adb/magisk/util_functions.sh ] || require_new_magisk\n")
	b.WriteString(". /data/adb/magisk/util_functions.sh\n")
	fmt.Fprintf(&b, "[ \"$MAGISK_VER_CODE\" -lt %d ] && require_new_magisk\n\n", minLoader)

	fmt.Fprintf(&b, "ui_print %q\n", bannerRule)
	fmt.Fprintf(&b, "ui_print \" ADB Root - %s \"\n", p.Title)
	fmt.Fprintf(&b, "ui_print \" %s \"\n", p.Strategy)
	fmt.Fprintf(&b, "ui_print %q\n\n", bannerRule)

	b.WriteString("API_LEVEL=$(getprop ro.build.version.sdk)\n\n")

	writeSection(&b, p.preflight)
	b.WriteString("install_module\n\n")
	writeSection(&b, p.postInstall)

	fmt.Fprintf(&b, "ui_print \"✓ %s\"\n", p.success)
	fmt.Fprintf(&b, "ui_print \"%s\"\n\n", p.hint)
	b.WriteString("exit 0\n")

	return b.String()
}

// writeSection appends a shell fragment followed by a blank line, skipping empty fragments.
func writeSection(b *strings.Builder, fragment string) {
	if fragment == "" {
		return
	}

	b.WriteString(fragment)
	b.WriteString("\n\n")
}
