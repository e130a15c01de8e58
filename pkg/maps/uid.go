package maps

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

var uidExtensions = []string{".yaml", ".bin", ".lua"}

// ComputeUID hashes the map files of a package. The map format is read from map.yaml.
func ComputeUID(p Package) (string, error) {
	if !p.Contains("map.yaml") || !p.Contains("map.bin") {
		return "", fmt.Errorf("%w: %s is missing map.yaml or map.bin", ErrInvalidPackage, p.Name())
	}

	r, err := p.Open("map.yaml")
	if err != nil {
		return "", err
	}
	format, err := ReadMapFormat(r)
	r.Close()
	if err != nil {
		return "", err
	}
	return ComputeUIDFormat(p, format)
}

// ComputeUIDFormat returns the lowercase hex SHA-1 of the package's yaml, bin and lua files
// in package order, plus map.png from format 12 on.
func ComputeUIDFormat(p Package, format int) (string, error) {
	if !p.Contains("map.yaml") || !p.Contains("map.bin") {
		return "", fmt.Errorf("%w: %s is missing map.yaml or map.bin", ErrInvalidPackage, p.Name())
	}

	names, err := p.Contents()
	if err != nil {
		return "", err
	}

	h := sha1.New()
	for _, name := range names {
		if !hashedFile(name, format) {
			continue
		}
		if err := hashFile(h, p, name); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashedFile(name string, format int) bool {
	for _, ext := range uidExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return format >= 12 && name == "map.png"
}

func hashFile(w io.Writer, p Package, name string) error {
	r, err := p.Open(name)
	if err != nil {
		return err
	}
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to hash %s: %w", name, err)
	}
	return nil
}
