package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLocation is returned when a path is not of the form
// scheme://container/key.
var ErrInvalidLocation = errors.New("invalid location")

// Location addresses a single object.
type Location struct {
	Scheme    string
	Container string
	Key       string
}

// String returns the location in scheme://container/key form.
func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return SchemeFile + "://" + l.Key
	}
	return l.Scheme + "://" + l.Container + "/" + l.Key
}

// ParseLocation splits a URI of the form scheme://container/key. The key is
// everything after the container and may itself contain "/", "?" or "#".
//
// file:///abs/path is accepted with an empty container and the absolute path
// as the key.
func ParseLocation(path string) (Location, error) {
	scheme, rest, ok := strings.Cut(path, "://")
	if !ok || scheme == "" {
		return Location{}, fmt.Errorf("%w %q: expected scheme://container/key", ErrInvalidLocation, path)
	}
	scheme = strings.ToLower(scheme)

	if scheme == SchemeFile {
		if !strings.HasPrefix(rest, "/") || len(rest) == 1 {
			return Location{}, fmt.Errorf("%w %q: expected file:///absolute/path", ErrInvalidLocation, path)
		}
		return Location{Scheme: SchemeFile, Key: rest}, nil
	}

	container, key, ok := strings.Cut(rest, "/")
	if container == "" {
		return Location{}, fmt.Errorf("%w %q: empty container", ErrInvalidLocation, path)
	}
	if !ok || key == "" {
		return Location{}, fmt.Errorf("%w %q: empty key", ErrInvalidLocation, path)
	}
	return Location{Scheme: scheme, Container: container, Key: key}, nil
}

// ParsePathOrLocation parses a URI with ParseLocation, treating anything
// without a scheme as a local file path.
func ParsePathOrLocation(path string) (Location, error) {
	if !strings.Contains(path, "://") {
		if path == "" {
			return Location{}, fmt.Errorf("%w: empty path", ErrInvalidLocation)
		}
		return Location{Scheme: SchemeFile, Key: path}, nil
	}
	return ParseLocation(path)
}
