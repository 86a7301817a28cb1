package contracts

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
)

// Version of the ETL binary.
const Version = "1.0.0"

// OutputFormatVersion is bumped whenever the layout of a written CSV changes.
const OutputFormatVersion = "v1"

// Set through -ldflags "-X covidetl/pkg/contracts.GitCommit=...".
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version      string `json:"version"`
	OutputFormat string `json:"output_format"`
	Commit       string `json:"commit"`
	BuiltAt      string `json:"built_at"`
	Runtime      string `json:"runtime"`
	Platform     string `json:"platform"`
}

// GetVersionInfo collects version details. When the commit was not injected
// at link time it falls back to the VCS revision stamped by the toolchain.
func GetVersionInfo() VersionInfo {
	commit := GitCommit
	if commit == "unknown" {
		if rev := vcsRevision(); rev != "" {
			commit = rev
		}
	}
	return VersionInfo{
		Version:      Version,
		OutputFormat: OutputFormatVersion,
		Commit:       commit,
		BuiltAt:      BuildTime,
		Runtime:      runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// LogAttrs returns the fields logged once at startup.
func (v VersionInfo) LogAttrs() []any {
	return []any{
		slog.String("version", v.Version),
		slog.String("output_format", v.OutputFormat),
		slog.String("commit", v.Commit),
	}
}

// String renders the -version output.
func (v VersionInfo) String() string {
	return fmt.Sprintf("covid-etl v%s (output %s, commit %s, built %s, %s %s)",
		v.Version, v.OutputFormat, v.Commit, v.BuiltAt, v.Runtime, v.Platform)
}

// GetFullVersionString is shorthand for GetVersionInfo().String().
func GetFullVersionString() string {
	return GetVersionInfo().String()
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}
