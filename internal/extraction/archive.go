package extraction

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"

	apperrors "covidetl/internal/errors"
)

// IsDataEntry reports whether an archive entry qualifies as the dataset:
// a name ending in lowercase .csv that does not mention metadata in any case.
func IsDataEntry(name string) bool {
	return strings.HasSuffix(name, ".csv") && !strings.Contains(strings.ToLower(name), "metadata")
}

// selectArchiveEntry opens a zip payload and returns the single qualifying entry
func selectArchiveEntry(payload []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", nil, apperrors.NewDecodeError("payload is not a readable zip archive", err)
	}

	var candidates []*zip.File
	for _, file := range zr.File {
		if file.FileInfo().IsDir() || !IsDataEntry(file.Name) {
			continue
		}
		candidates = append(candidates, file)
	}
	if len(candidates) != 1 {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		return "", nil, apperrors.NewAmbiguousArchiveError(names)
	}

	entry := candidates[0]
	rc, err := entry.Open()
	if err != nil {
		return "", nil, apperrors.NewDecodeError("cannot open archive entry "+entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, apperrors.NewDecodeError("cannot read archive entry "+entry.Name, err)
	}
	return entry.Name, data, nil
}
