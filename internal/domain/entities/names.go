package entities

import (
	"regexp"
	"strings"
)

// CollectionExt is the reserved extension of database files.
const CollectionExt = ".json"

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidCollectionName reports whether name is safe to use as a file base
// name: letters, digits, dash and underscore only.
func ValidCollectionName(name string) bool {
	return collectionNamePattern.MatchString(name)
}

// CollectionFileName returns the database file name for a base name.
func CollectionFileName(name string) string {
	return name + CollectionExt
}

// CollectionBaseName strips the reserved extension.
func CollectionBaseName(file string) string {
	return strings.TrimSuffix(file, CollectionExt)
}

// IsCollectionFile reports whether file carries the reserved extension and
// a valid base name.
func IsCollectionFile(file string) bool {
	if !strings.HasSuffix(file, CollectionExt) {
		return false
	}
	return ValidCollectionName(CollectionBaseName(file))
}
