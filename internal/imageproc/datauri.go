package imageproc

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrNotDataURI is returned by ParseDataURI for strings that are not base64 data URIs.
var ErrNotDataURI = errors.New("not a base64 data uri")

// EncodeDataURI builds "data:<mime>;base64,<payload>".
func EncodeDataURI(mime string, data []byte) string {
	var sb strings.Builder
	prefix := "data:" + mime + ";base64,"
	sb.Grow(len(prefix) + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString(prefix)
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String()
}

// EstimateKB approximates the decoded size of a data URI in kilobytes as
// len * 0.75 / 1024. The prefix is counted as payload.
func EstimateKB(dataURI string) float64 {
	return float64(len(dataURI)) * 0.75 / 1024
}

// IsDataURI reports whether s looks like a base64 data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:") && strings.Contains(s, ";base64,")
}

// ParseDataURI splits a base64 data URI into its MIME type and decoded bytes.
func ParseDataURI(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Join(ErrNotDataURI, err)
	}
	return mime, data, nil
}
