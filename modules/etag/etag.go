// Package etag renders resource versions as entity tags of the form "v:<n>".
package etag

import (
	"errors"
	"strconv"
	"strings"
)

const prefix = "v:"

var ErrInvalidETag = errors.New("invalid etag format")

// ETaggable is a resource carrying a version number.
type ETaggable interface {
	V() string
}

// ETag returns the unquoted tag, e.g. v:3.
func ETag(obj ETaggable) string {
	return prefix + obj.V()
}

// Header returns the tag quoted as it travels in ETag and If-Match headers.
func Header(obj ETaggable) string {
	return strconv.Quote(ETag(obj))
}

// ParseETag returns the version part of a tag. Surrounding quotes and a weak
// W/ marker are accepted.
func ParseETag(tag string) (string, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
	if unq, err := strconv.Unquote(tag); err == nil {
		tag = unq
	}
	v, ok := strings.CutPrefix(tag, prefix)
	if !ok || v == "" {
		return "", ErrInvalidETag
	}
	return v, nil
}

// ParseVersion parses an If-Match value into a version number.
func ParseVersion(tag string) (int64, error) {
	v, err := ParseETag(tag)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidETag
	}
	return n, nil
}
