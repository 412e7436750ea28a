package uploads

import (
	"context"
	"io"
	"strings"
)

const KeyPrefix = "uploads/"

type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

type Service interface {
	Open(ctx context.Context, path string) (Object, error)
}

// ObjectKey maps the part of a request path after /uploads/ to a bucket key.
func ObjectKey(path string) (string, error) {
	path = strings.TrimLeft(path, "/")
	if path == "" || strings.Contains(path, "..") || strings.Contains(path, `\`) {
		return "", ErrInvalidKey
	}

	return KeyPrefix + path, nil
}

// KeyFromURLPath converts a root-relative avatar URL such as
// /uploads/default-avatar.png back to its bucket key.
func KeyFromURLPath(urlPath string) (string, error) {
	rest, ok := strings.CutPrefix(strings.TrimLeft(urlPath, "/"), KeyPrefix)
	if !ok {
		return "", ErrInvalidKey
	}

	return ObjectKey(rest)
}
