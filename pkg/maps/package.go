package maps

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Package is a named collection of files holding one map.
type Package interface {
	Name() string
	// Contents lists the file names in package order.
	Contents() ([]string, error)
	Contains(name string) bool
	Open(name string) (io.ReadCloser, error)
}

// ReadWritePackage is a package that can be modified.
type ReadWritePackage interface {
	Package
	Update(name string, data []byte) error
	Delete(name string) error
}

// ReadFile returns the contents of one package file.
func ReadFile(p Package, name string) ([]byte, error) {
	r, err := p.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", name, p.Name(), err)
	}
	return data, nil
}

// Folder is a package backed by a directory. Subdirectories are ignored.
type Folder struct {
	Path string
}

// NewFolder creates the directory if needed.
func NewFolder(path string) (*Folder, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create map folder: %w", err)
	}
	return &Folder{Path: path}, nil
}

func (f *Folder) Name() string { return f.Path }

// Contents lists the regular files in name order.
func (f *Folder) Contents() ([]string, error) {
	entries, err := os.ReadDir(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (f *Folder) Contains(name string) bool {
	info, err := os.Stat(filepath.Join(f.Path, name))
	return err == nil && info.Mode().IsRegular()
}

func (f *Folder) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(f.Path, name))
}

func (f *Folder) Update(name string, data []byte) error {
	return os.WriteFile(filepath.Join(f.Path, name), data, 0o644)
}

func (f *Folder) Delete(name string) error {
	err := os.Remove(filepath.Join(f.Path, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryPackage keeps its files in memory, in insertion order.
type MemoryPackage struct {
	name  string
	mu    sync.RWMutex
	names []string
	files map[string][]byte
}

// NewMemoryPackage creates an empty in-memory package.
func NewMemoryPackage(name string) *MemoryPackage {
	return &MemoryPackage{name: name, files: make(map[string][]byte)}
}

func (p *MemoryPackage) Name() string { return p.name }

func (p *MemoryPackage) Contents() ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.names), nil
}

func (p *MemoryPackage) Contains(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.files[name]
	return ok
}

func (p *MemoryPackage) Open(name string) (io.ReadCloser, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", p.name, name, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *MemoryPackage) Update(name string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[name]; !ok {
		p.names = append(p.names, name)
	}
	p.files[name] = slices.Clone(data)
	return nil
}

func (p *MemoryPackage) Delete(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, name)
	p.names = slices.DeleteFunc(p.names, func(n string) bool { return n == name })
	return nil
}

func (p *MemoryPackage) clone() *MemoryPackage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := NewMemoryPackage(p.name)
	c.names = slices.Clone(p.names)
	for name, data := range p.files {
		c.files[name] = data
	}
	return c
}

// ZipPackage is a package stored as a zip archive (.oramap). The archive is read into
// memory when opened and rewritten on every update.
type ZipPackage struct {
	path string
	mem  *MemoryPackage
}

// OpenZip reads an existing archive, or starts an empty one when path does not exist.
func OpenZip(path string) (*ZipPackage, error) {
	z := &ZipPackage{path: path, mem: NewMemoryPackage(path)}

	r, err := zip.OpenReader(path)
	if errors.Is(err, fs.ErrNotExist) {
		return z, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPackage, path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", f.Name, path, err)
		}
		_ = z.mem.Update(f.Name, data)
	}
	return z, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (z *ZipPackage) Name() string                           { return z.path }
func (z *ZipPackage) Contents() ([]string, error)            { return z.mem.Contents() }
func (z *ZipPackage) Contains(name string) bool              { return z.mem.Contains(name) }
func (z *ZipPackage) Open(name string) (io.ReadCloser, error) { return z.mem.Open(name) }

func (z *ZipPackage) Update(name string, data []byte) error {
	return z.change(func(mem *MemoryPackage) error { return mem.Update(name, data) })
}

func (z *ZipPackage) Delete(name string) error {
	return z.change(func(mem *MemoryPackage) error { return mem.Delete(name) })
}

// change applies fn to a copy of the archive contents and keeps the copy only once it
// has been written to disk.
func (z *ZipPackage) change(fn func(*MemoryPackage) error) error {
	staged := z.mem.clone()
	if err := fn(staged); err != nil {
		return err
	}
	if err := z.flush(staged); err != nil {
		return err
	}
	z.mem = staged
	return nil
}

// flush writes mem to a temporary file and renames it over the archive.
func (z *ZipPackage) flush(mem *MemoryPackage) error {
	var buf bytes.Buffer
	if err := WriteZip(&buf, mem); err != nil {
		return err
	}

	tmp := z.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", z.path, err)
	}
	if err := os.Rename(tmp, z.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", z.path, err)
	}
	return nil
}

// WriteZip writes every file of p to w as a zip archive, in package order.
func WriteZip(w io.Writer, p Package) error {
	names, err := p.Contents()
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, name := range names {
		data, err := ReadFile(p, name)
		if err != nil {
			return err
		}
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// OpenPackage opens a map package from a directory or a zip archive path.
func OpenPackage(path string) (ReadWritePackage, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return &Folder{Path: path}, nil
	case err == nil || errors.Is(err, fs.ErrNotExist):
		if filepath.Ext(path) == "" {
			return NewFolder(path)
		}
		return OpenZip(path)
	default:
		return nil, fmt.Errorf("failed to open map package %s: %w", path, err)
	}
}
