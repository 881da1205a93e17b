package generator

import (
	"mime"
	"net/url"
	"path"
)

// MimeType guesses the upload mime type from the URL's extension.
func MimeType(mediaType, rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if t := mime.TypeByExtension(path.Ext(u.Path)); t != "" {
			return t
		}
	}
	if mediaType == "video" {
		return "video/mp4"
	}
	return "image/png"
}
