// Package util holds small helpers shared by the binaries.
package util

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// BuildInfo is stamped into binaries with -ldflags "-X main.buildVersion=...".
type BuildInfo struct {
	Version string
	Date    string
	Commit  string
}

func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// Print writes the build banner to w.
func (b BuildInfo) Print(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", na(b.Version))
	fmt.Fprintf(w, "Build date: %s\n", na(b.Date))
	fmt.Fprintf(w, "Build commit: %s\n", na(b.Commit))
}

// Fields renders the build info as log fields.
func (b BuildInfo) Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", na(b.Version)),
		zap.String("build_date", na(b.Date)),
		zap.String("commit", na(b.Commit)),
	}
}
