// Package manifest reads dependency lists from package manifests.
//
// package.json files are parsed leniently: comments and trailing commas are
// accepted, and dependency order follows the order of keys in the file.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/jsonc"
)

const (
	// EcosystemNPM is the ecosystem reported for package.json dependencies.
	EcosystemNPM = "npm"

	// UnknownVersion replaces a version that is empty after normalization.
	UnknownVersion = "unknown"
)

// Package is one dependency entry, in the shape the depscore tool expects.
type Package struct {
	Ecosystem string `json:"ecosystem"`
	Depname   string `json:"depname"`
	Version   string `json:"version"`
}

// String returns depname@version.
func (p Package) String() string {
	return p.Depname + "@" + p.Version
}

// Reader supplies the packages to score.
type Reader interface {
	Read(ctx context.Context) ([]Package, error)
}

// FileReader reads a package.json file from disk.
type FileReader struct {
	Path string
}

var _ Reader = (*FileReader)(nil)

// Read implements Reader.
func (r *FileReader) Read(_ context.Context) ([]Package, error) {
	return ReadPackageJSON(r.Path)
}

// ReadPackageJSON reads and parses the package.json at path.
func ReadPackageJSON(path string) ([]Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package.json: %w", err)
	}

	packages, err := ParsePackageJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return packages, nil
}

// ParsePackageJSON extracts dependencies followed by devDependencies.
//
// Within each section, entries keep the order they appear in the document.
// Versions lose a single leading range operator (one of ^ ~ > = <) and an
// empty version becomes UnknownVersion.
func ParsePackageJSON(data []byte) ([]Package, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}

	sections := make(map[string][]Package, 2)

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, fmt.Errorf("parse package.json: %w", err)
		}

		switch key {
		case "dependencies", "devDependencies":
			deps, err := readDependencies(dec)
			if err != nil {
				return nil, fmt.Errorf("parse package.json %s: %w", key, err)
			}

			sections[key] = deps
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("parse package.json: %w", err)
			}
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}

	packages := make([]Package, 0, len(sections["dependencies"])+len(sections["devDependencies"]))
	packages = append(packages, sections["dependencies"]...)
	packages = append(packages, sections["devDependencies"]...)

	return packages, nil
}

// readDependencies decodes one name → version object, preserving key order.
// A null section is treated as empty.
func readDependencies(dec *json.Decoder) ([]Package, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, nil
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected an object, got %v", tok)
	}

	var packages []Package

	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}

		var version string
		if err := dec.Decode(&version); err != nil {
			return nil, fmt.Errorf("dependency %q: version must be a string", name)
		}

		packages = append(packages, Package{
			Ecosystem: EcosystemNPM,
			Depname:   name,
			Version:   NormalizeVersion(version),
		})
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	return packages, nil
}

// NormalizeVersion strips one leading range operator and substitutes
// UnknownVersion for an empty result.
func NormalizeVersion(version string) string {
	if version != "" {
		switch version[0] {
		case '^', '~', '>', '=', '<':
			version = version[1:]
		}
	}

	if version == "" {
		return UnknownVersion
	}

	return version
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}

	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected an object key, got %v", tok)
	}

	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err == io.EOF {
		return fmt.Errorf("unexpected end of input")
	}

	if err != nil {
		return err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}

	return nil
}
