package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestResolve_BaselinePrefix asserts every profile's policy starts with the full baseline.
func TestResolve_BaselinePrefix(t *testing.T) {
	t.Parallel()

	baseline := BaselinePolicy()
	require.NotEmpty(t, baseline)

	for _, id := range Identifiers() {
		set, _ := Resolve(id, 0)
		require.True(t, strings.HasPrefix(set.PolicyRules, baseline), id)
	}
}

// TestResolve_ProfileRulesOnlyAppend checks each profile keeps every baseline rule and its own blocks.
func TestResolve_ProfileRulesOnlyAppend(t *testing.T) {
	t.Parallel()

	for _, id := range Identifiers() {
		set, _ := Resolve(id, 0)

		for _, rule := range Rules(baselinePolicy) {
			require.Contains(t, set.PolicyRules, rule+"\n", id)
		}

		for _, rule := range Rules(Lookup(id).Policy) {
			require.Contains(t, set.PolicyRules, rule+"\n", id)
		}

		require.NotContains(t, set.PolicyRules, ";", "statements carry no terminators")
	}
}

// TestResolve_NonInvasiveProfile verifies v10 ships no payload and deletes a copied binary.
func TestResolve_NonInvasiveProfile(t *testing.T) {
	t.Parallel()

	set, warnings := Resolve(V10, 29)
	require.Empty(t, warnings)
	require.Empty(t, set.Payload)
	require.Contains(t, set.InstallerScript, `rm -f "$MODPATH/system/bin/adbd"`)

	install := strings.Index(set.InstallerScript, "install_module")
	remove := strings.Index(set.InstallerScript, "rm -f")
	require.Greater(t, remove, install, "removal must run after the generic install")
}

// TestResolve_PayloadPolicy checks the payload presence for each profile.
func TestResolve_PayloadPolicy(t *testing.T) {
	t.Parallel()

	for _, id := range Identifiers() {
		set, _ := Resolve(id, 0)

		if Lookup(id).Payload == PayloadNone {
			require.Empty(t, set.Payload, id)

			continue
		}

		require.Len(t, set.Payload, 1, id)
		require.Equal(t, PayloadPath, set.Payload[0].Path)
		require.Contains(t, string(set.Payload[0].Content), set.Slug)
	}
}

// TestResolve_UnknownFallsBackToUniversal asserts fallback determinism.
func TestResolve_UnknownFallsBackToUniversal(t *testing.T) {
	t.Parallel()

	want, wantWarnings := Resolve(Universal, 35)

	for _, raw := range []string{"v8", "", "android13", "v11-12"} {
		id, ok := ParseIdentifier(raw)
		require.False(t, ok, raw)

		got, gotWarnings := Resolve(id, 35)
		require.Equal(t, want, got, raw)
		require.Equal(t, wantWarnings, gotWarnings)

		// Unparsed identifiers fall back the same way.
		got, _ = Resolve(Identifier(raw), 35)
		require.Equal(t, want, got, raw)
	}
}

// TestResolve_Metadata checks the descriptor for the Android 10 scenario.
func TestResolve_Metadata(t *testing.T) {
	t.Parallel()

	set, _ := Resolve(V10, 29)
	prop := set.Metadata.String()

	require.Contains(t, prop, "id=adb_root_android10\n")
	require.Contains(t, prop, "name=ADB Root Enhanced - ANDROID10\n")
	require.Contains(t, prop, "version=v2.0-android10\n")
	require.Contains(t, prop, "versionCode=29\n")
	require.Contains(t, prop, "author="+DefaultAuthor+"\n")
	require.Contains(t, prop, "minMagisk=20400\n")
	require.True(t, strings.HasPrefix(prop, "id="))

	lines := strings.Split(strings.TrimSuffix(prop, "\n"), "\n")
	require.Len(t, lines, 7)
}

// TestResolve_MinijailRules compares the v11_12 and v9 policies.
func TestResolve_MinijailRules(t *testing.T) {
	t.Parallel()

	modern, _ := Resolve(V11And12, 31)
	legacy, _ := Resolve(V9, 28)

	for _, rule := range []string{
		"allow adbd minijail process transition",
		"allow adbd apex_data_file dir { search read write }",
		"allow adbd self capability { setuid setgid setpcap }",
	} {
		require.Contains(t, modern.PolicyRules, rule)
		require.NotContains(t, legacy.PolicyRules, rule)
	}

	require.Equal(t, "android12", modern.Slug)
	require.Equal(t, "adb_root_android12", modern.Metadata.ID)
}

// TestResolve_Warnings checks the informational API level check never blocks output.
func TestResolve_Warnings(t *testing.T) {
	t.Parallel()

	set, warnings := Resolve(V9, 31)
	require.NotNil(t, set)
	require.Len(t, warnings, 1)
	require.Equal(t, V9, warnings[0].Identifier)
	require.Contains(t, warnings[0].String(), "[28]")
	require.Equal(t, 31, set.APILevel)
	require.Equal(t, "android9", set.Slug)

	_, warnings = Resolve(V11And12, 32)
	require.Empty(t, warnings)

	_, warnings = Resolve(Universal, 27)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].String(), "[28+]")
}

// TestResolve_DefaultAPILevel checks a missing API level picks the profile default.
func TestResolve_DefaultAPILevel(t *testing.T) {
	t.Parallel()

	for _, id := range Identifiers() {
		set, warnings := Resolve(id, 0)
		require.Empty(t, warnings)
		require.Equal(t, Lookup(id).DefaultAPI, set.APILevel)
	}
}

// TestResolver_Options verifies metadata overrides and that blank overrides keep defaults.
func TestResolver_Options(t *testing.T) {
	t.Parallel()

	r := NewResolver(WithAuthor("Oleg\nShokin"), WithVersionPrefix("v3.1"), WithMinLoaderVersion(24000))
	set, _ := r.Resolve(V9, 28)

	require.Equal(t, "v3.1-android9", set.Metadata.Version)
	require.Contains(t, set.Metadata.String(), "author=Oleg Shokin\n")
	require.Contains(t, set.Metadata.String(), "minMagisk=24000\n")
	require.Contains(t, set.InstallerScript, `-lt 24000 ]`)
	require.Contains(t, set.InstallerScript, "Magisk v24.0+")

	set, _ = NewResolver(WithAuthor("  "), WithVersionPrefix(""), WithMinLoaderVersion(-1)).Resolve(V9, 28)
	require.Equal(t, "v2.0-android9", set.Metadata.Version)
	require.Equal(t, DefaultAuthor, set.Metadata.Author)
	require.Equal(t, DefaultMinLoaderVersion, set.Metadata.MinLoader)
}
