// Package names maps the package format's 32-bit name hashes back to
// human-readable names. The registry is loaded from plain text files, one
// name per line, optionally carrying an explicit hash. Resolution never
// fails: an unmapped hash falls back to its hexadecimal form.
package names

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Registry file names inside the registry directory.
const (
	fileRegistry = "reg_file.txt"
	typeRegistry = "reg_type.txt"
)

// Hash returns the 32-bit FNV-1 hash of the lowercased name, the hash
// function the package format uses for every type, group and instance id.
func Hash(name string) uint32 {
	h := uint32(0x811C9DC5)
	for _, c := range strings.ToLower(name) {
		h *= 0x1000193
		h ^= uint32(c)
	}
	return h
}

// Registry holds the hash-to-name tables. File names and type names live in
// separate spaces: the same hash may mean different names in each.
//
// The project table is a per-archive overlay fed from a package's embedded
// names resource; it is consulted before the base table and cleared between
// archives. The base tables are append-only.
type Registry struct {
	files   map[uint32]string
	types   map[uint32]string
	project map[uint32]string
}

func NewRegistry() *Registry {
	return &Registry{
		files:   make(map[uint32]string),
		types:   make(map[uint32]string),
		project: make(map[uint32]string),
	}
}

// LoadDirectory loads reg_file.txt and reg_type.txt from dir. Both files
// must exist and parse; a registry problem at startup is fatal for the run.
func (r *Registry) LoadDirectory(dir string) error {
	if err := loadTable(filepath.Join(dir, fileRegistry), r.files); err != nil {
		return fmt.Errorf("load file registry: %w", err)
	}
	if err := loadTable(filepath.Join(dir, typeRegistry), r.types); err != nil {
		return fmt.Errorf("load type registry: %w", err)
	}
	return nil
}

// loadTable reads one registry file. A line is either a bare name, whose
// hash is computed, or "name<TAB>0xHASH" with an explicit hash.
func loadTable(path string, dst map[uint32]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, hash, err := parseLine(text)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		dst[hash] = name
	}
	return sc.Err()
}

func parseLine(text string) (string, uint32, error) {
	name, rest, found := strings.Cut(text, "\t")
	name = strings.TrimSpace(name)
	if !found {
		return name, Hash(name), nil
	}
	rest = strings.TrimSpace(rest)
	v, err := strconv.ParseUint(strings.TrimPrefix(rest, "0x"), 16, 32)
	if err != nil {
		return "", 0, fmt.Errorf("bad hash %q: %w", rest, err)
	}
	return name, uint32(v), nil
}

// AddName registers a name under its computed hash in the base file table.
func (r *Registry) AddName(name string) {
	r.files[Hash(name)] = name
}

// Add registers a name under an explicit hash in the base file table.
func (r *Registry) Add(name string, hash uint32) {
	r.files[hash] = name
}

// AddProjectNames feeds the per-archive overlay from registry-format text,
// typically the decompressed embedded names resource of a package.
func (r *Registry) AddProjectNames(text string) error {
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, hash, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("project names line %d: %w", i+1, err)
		}
		r.project[hash] = name
	}
	return nil
}

// ClearProjectNames drops the per-archive overlay.
func (r *Registry) ClearProjectNames() {
	r.project = make(map[uint32]string)
}

// SwapProjectNames installs a different overlay and returns the previous
// one. The pipeline uses it to keep the overlay scoped to one archive even
// while an embedded package is being re-extracted.
func (r *Registry) SwapProjectNames(overlay map[uint32]string) map[uint32]string {
	prev := r.project
	if overlay == nil {
		overlay = make(map[uint32]string)
	}
	r.project = overlay
	return prev
}

// FileName resolves an instance or group hash. Unmapped hashes come back as
// "#xxxxxxxx", so resolution is deterministic and total.
func (r *Registry) FileName(hash uint32) string {
	if name, ok := r.project[hash]; ok {
		return name
	}
	if name, ok := r.files[hash]; ok {
		return name
	}
	return fmt.Sprintf("#%08x", hash)
}

// TypeName resolves a type hash with the same fallback rule as FileName.
func (r *Registry) TypeName(hash uint32) string {
	if name, ok := r.types[hash]; ok {
		return name
	}
	return fmt.Sprintf("#%08x", hash)
}
