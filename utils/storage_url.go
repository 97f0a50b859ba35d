package utils

import (
	"net/url"
	"os"
	"strings"
)

const gcsPublicHost = "https://storage.googleapis.com/"

// BuildObjectAccessURL turns an object key into the URL stored on products, heroes and categories.
//
// STORAGE_ACCESS_BASE_URL (a CDN or proxy) wins over the public GCS URL. It may contain
// a {objectKey} placeholder; query-style bases get the key escaped.
// Without either setting the bare key is returned.
func BuildObjectAccessURL(objectKey string) string {
	objectKey = strings.TrimLeft(objectKey, "/")
	if base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL")); base != "" {
		return expandAccessBase(base, objectKey)
	}
	if bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET")); bucket != "" {
		return gcsPublicHost + bucket + "/" + objectKey
	}
	return objectKey
}

func expandAccessBase(base, objectKey string) string {
	queryStyle := strings.Contains(base, "?")
	key := objectKey
	if queryStyle {
		key = url.QueryEscape(objectKey)
	}
	switch {
	case strings.Contains(base, "{objectKey}"):
		return strings.ReplaceAll(base, "{objectKey}", key)
	case queryStyle:
		return base + key
	default:
		return strings.TrimRight(base, "/") + "/" + key
	}
}
