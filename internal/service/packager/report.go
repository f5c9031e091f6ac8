package packager

import (
	"github.com/oshokin/adbroot-builder/internal/archive"
	"github.com/oshokin/adbroot-builder/internal/config"
	"github.com/oshokin/adbroot-builder/internal/profile"
)

// Report is the outcome of one target.
type Report struct {
	// Target is the requested profile and API level.
	Target config.Target
	// Identifier is the profile actually built.
	Identifier profile.Identifier
	// APILevel is the level the module was generated for.
	APILevel int
	// Destination is the archive path.
	Destination string
	// Result is the verified archive; nil on failure.
	Result *archive.Result
	// Signature is the detached signature path when signing is enabled.
	Signature string
	// Warnings are the non-fatal API level mismatches.
	Warnings []profile.Warning
	// Err is the build failure, if any.
	Err error
}

// Succeeded reports whether the module was built and verified.
func (r *Report) Succeeded() bool {
	return r.Err == nil && r.Result != nil
}

// Summary aggregates the reports of one run.
type Summary struct {
	// Reports are in target order.
	Reports []*Report
	// Succeeded counts verified modules.
	Succeeded int
	// Total counts attempted modules.
	Total int
}

// add records a report.
func (s *Summary) add(r *Report) {
	s.Reports = append(s.Reports, r)
	s.Total++

	if r.Succeeded() {
		s.Succeeded++
	}
}
