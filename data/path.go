package data

import (
	"fmt"
	"strings"
)

// Separator delimits the container and directory segments of a path.
const Separator = "/"

// IsContainerPath reports whether path names a container rather than a directory.
// Any path without a separator is a container root.
func IsContainerPath(path string) bool {
	return !strings.Contains(path, Separator)
}

// SplitPath splits path into its container and the path relative to it.
// The relative path is empty for container roots.
func SplitPath(path string) (string, string) {
	container, rel, _ := strings.Cut(path, Separator)
	return container, rel
}

// JoinPath joins the segments with the separator, skipping empty ones.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.Trim(segment, Separator)
		if segment != "" {
			parts = append(parts, segment)
		}
	}

	return strings.Join(parts, Separator)
}

// ParentPath returns the parent of path, or an empty string for container roots.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, Separator)
	if idx < 0 {
		return ""
	}

	return path[:idx]
}

// HasPrefix checks if path lies below prefix.
func HasPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}

	return strings.HasPrefix(path, prefix+Separator)
}

// ValidatePath rejects empty paths and paths with empty segments.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	for segment := range strings.SplitSeq(path, Separator) {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: '%s'", ErrInvalidPath, path)
		}
	}

	return nil
}
