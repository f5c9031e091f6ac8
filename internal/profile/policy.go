package profile

import "strings"

// PolicyBlock is a titled group of access-grant statements, one per line in sepolicy.rule.
type PolicyBlock struct {
	// Title is rendered as a comment line above the rules.
	Title string
	// Rules are the statements in output order.
	Rules []string
}

// baselinePolicy is shared by every profile and always rendered first.
//
//nolint:gochecknoglobals // Read-only policy table.
var baselinePolicy = []PolicyBlock{
	{
		Title: "Basic adbd root transitions",
		Rules: []string{
			"allow adbd adbd process setcurrent",
			"allow adbd su process dyntransition",
			"allow su * * *",
		},
	},
	{
		Title: "Property access",
		Rules: []string{
			"allow adbd property_type property_service",
			"allow adbd init property_service",
		},
	},
	{
		Title: "File system access",
		Rules: []string{
			"allow adbd rootfs file { read write create unlink open }",
			"allow adbd system_file file { read write execute }",
			"allow adbd vendor_file file { read write execute }",
		},
	},
	{
		Title: "Process transitions",
		Rules: []string{
			"allow adbd self process { transition dyntransition }",
			"allow adbd magisk process transition",
		},
	},
	{
		Title: "Socket access",
		Rules: []string{
			"allow adbd self unix_stream_socket { create connect write read }",
			"allow adbd self tcp_socket { create connect write read }",
		},
	},
}

//nolint:gochecknoglobals // Read-only policy tables.
var (
	android9Policy = []PolicyBlock{
		{
			Title: "Android 9 specific policies",
			Rules: []string{
				"allow adbd shell_exec file { read execute }",
				"allow adbd toolbox_exec file { read execute }",
				"allow adbd system_data_file dir { search read write }",
			},
		},
	}

	android10Policy = []PolicyBlock{
		{
			Title: "Android 10 specific - minimal impact",
			Rules: []string{
				"allow adbd shell_exec file { read execute }",
				"allow adbd system_data_file dir { search read }",
			},
		},
		{
			Title: "Prevent ADB breakage",
			Rules: []string{
				"dontaudit adbd kernel security { compute_av }",
				"allow adbd adbd_socket sock_file { write read }",
			},
		},
	}

	android11Policy = []PolicyBlock{
		{
			Title: "Android 11+ specific - comprehensive coverage",
			Rules: []string{
				"allow adbd self capability { setuid setgid setpcap }",
				"allow adbd self capability2 { setuid setgid }",
			},
		},
		{
			Title: "Minijail bypass support",
			Rules: []string{
				"allow adbd minijail process transition",
				"allow adbd vendor_toolbox_exec file { read execute }",
				"allow adbd apexd_file file { read execute }",
				"allow adbd apex_data_file dir { search read write }",
			},
		},
		{
			Title: "Enhanced property access",
			Rules: []string{
				"allow adbd init property_service",
				"allow adbd property_socket sock_file { write read }",
			},
		},
		{
			Title: "Modern Android compatibility",
			Rules: []string{
				"allow adbd vendor_file file { read write execute }",
				"allow adbd system_ext_file file { read write execute }",
				"allow adbd product_file file { read write execute }",
			},
		},
	}
)

// BaselinePolicy returns the rendered baseline block that prefixes every policy file.
func BaselinePolicy() string {
	return renderPolicy(baselinePolicy)
}

// Rules flattens blocks into statements, dropping titles.
func Rules(blocks []PolicyBlock) []string {
	var rules []string
	for _, block := range blocks {
		rules = append(rules, block.Rules...)
	}

	return rules
}

// composePolicy renders the baseline followed by the profile-specific blocks.
// Profile blocks are only ever appended, so they can add grants but never drop baseline ones.
func composePolicy(extra []PolicyBlock) string {
	if len(extra) == 0 {
		return renderPolicy(baselinePolicy)
	}

	return renderPolicy(baselinePolicy) + "\n" + renderPolicy(extra)
}

// renderPolicy writes blocks separated by blank lines, each title as a comment.
func renderPolicy(blocks []PolicyBlock) string {
	var builder strings.Builder

	for i, block := range blocks {
		if i > 0 {
			builder.WriteByte('\n')
		}

		builder.WriteString("# ")
		builder.WriteString(block.Title)
		builder.WriteByte('\n')

		for _, rule := range block.Rules {
			builder.WriteString(rule)
			builder.WriteByte('\n')
		}
	}

	return builder.String()
}
