package constants

import (
	"path/filepath"
	"strings"
)

// AllowedExtensions holds the page image extensions accepted for processing and inbox discovery.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"webp": {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"heic": {},
	"heif": {},
}

var mimeByExt = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"heif": "image/heif",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMETypeForPath returns the image MIME type implied by the path extension,
// or application/octet-stream when unknown.
func MIMETypeForPath(path string) string {
	if m, ok := mimeByExt[NormalizeExt(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}
