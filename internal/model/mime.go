package model

import (
	"mime"
	"path"
	"strings"
)

var knownTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".pdf":  MimePDF,
	".zip":  MimeZip,
}

// MimeByFilename guesses a MIME type from the file extension. It returns ""
// when the extension is unknown.
func MimeByFilename(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if mt, ok := knownTypes[ext]; ok {
		return mt
	}
	return BaseMime(mime.TypeByExtension(ext))
}

// BaseMime strips parameters and lower-cases a media type.
func BaseMime(mt string) string {
	if mt == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
