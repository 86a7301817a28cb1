package contracts

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, OutputFormatVersion, info.OutputFormat)
	assert.Equal(t, runtime.Version(), info.Runtime)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.Commit)

	assert.Contains(t, GetFullVersionString(), "covid-etl v"+Version)
	assert.Contains(t, info.String(), "output "+OutputFormatVersion)
	assert.Len(t, info.LogAttrs(), 3)
}
