// Package archive opens uploaded font packages and lists the font binaries
// they contain.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// ErrUnreadable is returned when the container itself cannot be opened.
var ErrUnreadable = errors.New("archive unreadable")

// ErrEntryTooLarge is reported for an entry whose uncompressed size exceeds
// the read limit.
var ErrEntryTooLarge = errors.New("entry exceeds size limit")

// FontExtensions is the set of recognised font file extensions, lower case.
var FontExtensions = map[string]bool{
	"otf":   true,
	"ttf":   true,
	"woff":  true,
	"woff2": true,
}

// Entry is one font file inside an archive. Its bytes are read on demand.
type Entry struct {
	Path string
	Name string
	Ext  string
	Size int64
	file *zip.File
}

// Read materializes the entry's bytes. A positive limit caps the number of
// uncompressed bytes read; the declared size is not trusted.
func (e Entry) Read(limit int64) ([]byte, error) {
	if e.file == nil {
		return nil, fmt.Errorf("entry %s: no backing file", e.Path)
	}
	if limit > 0 && e.Size > limit {
		return nil, &EntryError{Path: e.Path, Err: fmt.Errorf("%w: %d > %d bytes", ErrEntryTooLarge, e.Size, limit)}
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, &EntryError{Path: e.Path, Err: err}
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &EntryError{Path: e.Path, Err: err}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, &EntryError{Path: e.Path, Err: fmt.Errorf("%w: more than %d bytes", ErrEntryTooLarge, limit)}
	}
	return data, nil
}

// EntryError reports a single entry that could not be read. It never aborts
// the inspection of the remaining entries.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s unreadable: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Inventory is the result of inspecting an archive.
type Inventory struct {
	Entries   []Entry
	FileTypes []string // distinct upper-case extensions, sorted
	TotalSize int64    // uncompressed bytes of all font entries
}

// Inspect opens data as a ZIP container and collects its font entries in
// archive order. Directory entries and macOS metadata files are skipped.
func Inspect(data []byte) (*Inventory, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	inv := &Inventory{}
	types := map[string]bool{}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if isMetadataFile(f.Name) {
			continue
		}
		ext := Extension(f.Name)
		if !FontExtensions[ext] {
			continue
		}
		inv.Entries = append(inv.Entries, Entry{
			Path: f.Name,
			Name: path.Base(f.Name),
			Ext:  ext,
			Size: int64(f.UncompressedSize64),
			file: f,
		})
		inv.TotalSize += int64(f.UncompressedSize64)
		types[strings.ToUpper(ext)] = true
	}

	inv.FileTypes = make([]string, 0, len(types))
	for t := range types {
		inv.FileTypes = append(inv.FileTypes, t)
	}
	sort.Strings(inv.FileTypes)
	return inv, nil
}

// Materialized pairs an entry with its bytes.
type Materialized struct {
	Entry
	Data []byte
}

// Materialize reads the entries accepted by keep, or all of them when keep is
// nil, each capped at limit bytes. Entries that fail to read are left out of
// the result and reported as warnings.
func (inv *Inventory) Materialize(keep func(Entry) bool, limit int64) ([]Materialized, []error) {
	out := make([]Materialized, 0, len(inv.Entries))
	var warnings []error
	for _, e := range inv.Entries {
		if keep != nil && !keep(e) {
			continue
		}
		data, err := e.Read(limit)
		if err != nil {
			warnings = append(warnings, err)
			continue
		}
		out = append(out, Materialized{Entry: e, Data: data})
	}
	return out, warnings
}

// SizeKB converts the aggregate size to kilobytes, rounded up.
func (inv *Inventory) SizeKB() int64 {
	return (inv.TotalSize + 1023) / 1024
}

// Extension returns the lower-case extension of name without the dot.
func Extension(name string) string {
	ext := path.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func isMetadataFile(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), "._")
}
