package doctypes

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DocType represents the coarse content class of an indexable file.
// It selects which content adapter extracts text from the file.
type DocType string

const (
	// DocTypeText represents plain-text content readable as-is.
	DocTypeText DocType = "text"
	// DocTypeDocument represents binary document formats (PDF, office).
	DocTypeDocument DocType = "document"
	// DocTypeImage represents image formats handled by the OCR adapter.
	DocTypeImage DocType = "image"
	// DocTypeOther represents unknown or unsupported content.
	DocTypeOther DocType = "other"
)

// TextExtensions maps file extensions to whether they are plain-text formats.
var TextExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".rst":  true,
	".csv":  true,
	".json": true,
	".xml":  true,
	".html": true,
	".htm":  true,
	".yaml": true,
	".yml":  true,
	".log":  true,
}

// DocumentExtensions maps file extensions to whether they are binary
// document formats.
var DocumentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".odt":  true,
	".rtf":  true,
	".epub": true,
}

// ImageExtensions maps file extensions to whether they are OCR-able images.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".rst":  "text/x-rst",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".htm":  "text/html",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".log":  "text/plain",

	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".epub": "application/epub+zip",

	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".webp": "image/webp",
}

// GetDocType classifies a file by its extension.
func GetDocType(ext string) DocType {
	ext = strings.ToLower(ext)
	switch {
	case TextExtensions[ext]:
		return DocTypeText
	case DocumentExtensions[ext]:
		return DocTypeDocument
	case ImageExtensions[ext]:
		return DocTypeImage
	default:
		return DocTypeOther
	}
}

// GetMimeType returns the MIME type for an extension, or
// "application/octet-stream" if unknown.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// Classify resolves the document type and MIME type for a file. Extension
// lookup is tried first; files with no (or an unknown) extension fall back to
// content sniffing, which costs one bounded read of the file header.
func Classify(path string) (DocType, string) {
	ext := strings.ToLower(filepath.Ext(path))

	if dt := GetDocType(ext); dt != DocTypeOther {
		return dt, GetMimeType(ext)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return DocTypeOther, "application/octet-stream"
	}

	switch {
	case mtype.Is("application/pdf"):
		return DocTypeDocument, mtype.String()
	case strings.HasPrefix(mtype.String(), "image/"):
		return DocTypeImage, mtype.String()
	case strings.HasPrefix(mtype.String(), "text/"):
		return DocTypeText, mtype.String()
	default:
		return DocTypeOther, mtype.String()
	}
}
