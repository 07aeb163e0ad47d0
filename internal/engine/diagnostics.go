// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// Diagnostics holds the warning and error lines found in engine stderr.
type Diagnostics struct {
	Warnings []string
	Errors   []string
}

var (
	ignorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*$`),
		regexp.MustCompile(`(?i)^debug:`),
	}
	errorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)error`),
		regexp.MustCompile(`(?i)exception`),
		regexp.MustCompile(`(?i)fail`),
		regexp.MustCompile(`(?i)critical`),
	}
	warningPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)warning`),
		regexp.MustCompile(`(?i)warn:`),
		regexp.MustCompile(`(?i)deprecation`),
	}
)

// ScanDiagnostics classifies each stderr line. Error patterns take priority
// over warning patterns; other lines are dropped.
func ScanDiagnostics(stderr string) Diagnostics {
	var d Diagnostics
	sc := bufio.NewScanner(strings.NewReader(stderr))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if matchAny(ignorePatterns, line) {
			continue
		}
		switch {
		case matchAny(errorPatterns, line):
			d.Errors = append(d.Errors, strings.TrimSpace(line))
		case matchAny(warningPatterns, line):
			d.Warnings = append(d.Warnings, strings.TrimSpace(line))
		}
	}
	return d
}

func matchAny(patterns []*regexp.Regexp, line string) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// stderrRule maps a marker in markitdown's stderr to an error kind.
type stderrRule struct {
	marker string
	kind   types.ErrorKind
}

// stderrRules is checked in order; the first marker found wins. Exception
// class names come before the looser network and plugin markers.
var stderrRules = []stderrRule{
	{"UnsupportedFormatException", types.KindUnsupportedFormat},
	{"MissingDependencyException", types.KindUnsupportedFormat},
	{"FileConversionException", types.KindCorruptInput},
	{"ConnectionError", types.KindNetwork},
	{"ServiceRequestError", types.KindNetwork},
	{"HTTPSConnectionPool", types.KindNetwork},
	{"Max retries exceeded", types.KindNetwork},
	{"Name or service not known", types.KindNetwork},
	{"getaddrinfo", types.KindNetwork},
	{"Connection refused", types.KindNetwork},
	{"ClientAuthenticationError", types.KindNetwork},
	{"entry_points", types.KindPlugin},
	{"plugin", types.KindPlugin},
	{"No such file or directory", types.KindInput},
	{"Permission denied", types.KindInput},
}

// ClassifyStderr returns the error kind suggested by markitdown's stderr.
func ClassifyStderr(stderr string) types.ErrorKind {
	lower := strings.ToLower(stderr)
	for _, r := range stderrRules {
		if strings.Contains(lower, strings.ToLower(r.marker)) {
			return r.kind
		}
	}
	return types.KindUnknown
}

// lastMeaningfulLine returns the last non-blank stderr line, which for a
// Python traceback is the exception and its message.
func lastMeaningfulLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
