// Package config loads the declared directories of a run. Documents are
// authored either as JSONC (JSON extended with comments and trailing
// commas) or as YAML, selected by the file extension.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwantia/aclsync/data"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("aclsync: unsupported configuration format")
	ErrDuplicatePath     = errors.New("aclsync: duplicate declared path")
)

// Format of a configuration document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath derives the document format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}

	return "", fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, path)
}

// LoadDirectories reads and validates the declared directories stored at path.
func LoadDirectories(path string) ([]*data.DeclaredDirectory, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	directories, err := Parse(content, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return directories, nil
}

// Parse decodes and validates a list of declared directories. The order of
// the document is kept, it defines the order of reconciliation.
func Parse(content []byte, format Format) ([]*data.DeclaredDirectory, error) {
	directories := make([]*data.DeclaredDirectory, 0)

	switch format {
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(content)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&directories); err != nil {
			return nil, fmt.Errorf("parsing directories: %w", err)
		}
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&directories); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing directories: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, format)
	}

	if err := Validate(directories); err != nil {
		return nil, err
	}

	return directories, nil
}

// Validate checks every declared directory and rejects duplicate paths.
func Validate(directories []*data.DeclaredDirectory) error {
	seen := make(map[string]int, len(directories))
	errs := &data.Errors{}

	for i, directory := range directories {
		if directory == nil {
			errs.Add(fmt.Errorf("directory #%d: empty declaration", i))
			continue
		}
		if err := directory.Validate(); err != nil {
			errs.Add(fmt.Errorf("directory #%d: %w", i, err))
			continue
		}

		if first, exists := seen[directory.Path]; exists {
			errs.Add(fmt.Errorf("directory #%d: %w: '%s' already declared by #%d", i, ErrDuplicatePath, directory.Path, first))
			continue
		}
		seen[directory.Path] = i
	}

	return errs.Errors()
}
