package builder

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is used when neither the extension nor the file
// contents identify a MIME type.
const DefaultContentType = "application/octet-stream"

// DetectContentType derives a MIME type for a build output file. Extension
// mapping comes first so text assets keep their charset-qualified types;
// content sniffing is the fallback for extensionless files.
func DetectContentType(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		if ct := mime.TypeByExtension(strings.ToLower(ext)); ct != "" {
			return ct
		}
	}
	if mt, err := mimetype.DetectFile(path); err == nil && mt != nil {
		return mt.String()
	}
	return DefaultContentType
}
