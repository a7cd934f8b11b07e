// Package attachment normalizes the media metadata carried by inbound messages.
package attachment

import (
	"path"
	"strings"

	"github.com/memohai/wadesk/internal/message"
)

const octetStream = "application/octet-stream"

// NormalizeMime lowercases raw and drops parameters such as "; codecs=opus".
func NormalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if mime == "" {
		return ""
	}
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if !strings.Contains(mime, "/") {
		return ""
	}
	return mime
}

// ResolveMime picks the MIME type to store for a media message of kind.
// A declared type that contradicts the kind falls back to the kind's family.
func ResolveMime(kind message.Kind, declared string) string {
	mime := NormalizeMime(declared)
	family := familyOf(kind)
	switch {
	case mime == "" || mime == octetStream:
		if family != "" {
			return family + "/*"
		}
		return octetStream
	case family != "" && !strings.HasPrefix(mime, family+"/"):
		return family + "/*"
	}
	return mime
}

// CleanFilename strips any directory part a sender put into a document name.
func CleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

func familyOf(kind message.Kind) string {
	switch kind {
	case message.KindImage:
		return "image"
	case message.KindAudio:
		return "audio"
	case message.KindVideo:
		return "video"
	}
	return ""
}
