package models

import (
	"net/url"
	"strings"
)

// ResolveImage joins a relative image path to origin. Absolute URLs are
// returned unchanged and an empty path yields an empty string.
func ResolveImage(origin, image string) string {
	image = strings.TrimSpace(image)
	if image == "" {
		return ""
	}
	if u, err := url.Parse(image); err == nil && u.Scheme != "" && u.Host != "" {
		return image
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(image, "/")
}

// ImageURL resolves the book cover against origin.
func (b Book) ImageURL(origin string) string {
	return ResolveImage(origin, b.Image)
}

// ImageURL resolves the author portrait against origin.
func (a Author) ImageURL(origin string) string {
	return ResolveImage(origin, a.Image)
}
