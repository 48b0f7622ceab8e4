package artifacts

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/workspace"
)

// Resource URI schemes served by ResolveResource.
const (
	SchemeArtifact  = "artifact://sha256/"
	SchemeWorkspace = "workspace://"
)

// Resource is the resolved content of an artifact or workspace URI.
// Exactly one of Text or Base64 is populated, per MimeType.
type Resource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Base64   string `json:"blob,omitempty"`
}

// maxReplacementRunes is the tolerance for invalid UTF-8 before a
// body is treated as binary and returned base64-encoded.
const maxReplacementRunes = 5

// ResolveResource reads the content behind a resource URI.
//
//	artifact://sha256/<hex>  bytes from the pool
//	workspace://<relpath>    workspace file through the path guard
//
// Bodies that decode as UTF-8 with fewer than 5 replacement runes
// come back as text; anything noisier is base64 octet-stream.
func (p *Pool) ResolveResource(uri string) (*Resource, error) {
	switch {
	case strings.HasPrefix(uri, SchemeArtifact):
		hash := strings.TrimPrefix(uri, SchemeArtifact)
		data, err := p.Read(hash)
		if err != nil {
			return nil, err
		}
		return buildResource(uri, data), nil

	case strings.HasPrefix(uri, SchemeWorkspace):
		rel := strings.TrimPrefix(uri, SchemeWorkspace)
		data, err := workspace.ReadFile(p.root, rel)
		if err != nil {
			return nil, err
		}
		return buildResource(uri, data), nil

	default:
		return nil, types.Errorf(types.ErrValidation, "unsupported resource scheme: %s", uri)
	}
}

func buildResource(uri string, data []byte) *Resource {
	if text, ok := decodeText(data); ok {
		return &Resource{URI: uri, MimeType: "text/plain", Text: text}
	}
	return &Resource{
		URI:      uri,
		MimeType: "application/octet-stream",
		Base64:   base64.StdEncoding.EncodeToString(data),
	}
}

// decodeText decodes data as UTF-8, substituting U+FFFD for invalid
// bytes. It reports failure once the replacement count reaches the
// binary threshold.
func decodeText(data []byte) (string, bool) {
	replacements := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			replacements++
			if replacements >= maxReplacementRunes {
				return "", false
			}
		}
		i += size
	}
	return strings.ToValidUTF8(string(data), "�"), true
}
