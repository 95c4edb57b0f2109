// Package emitter holds what every target emitter shares: the rendered file set,
// the write plan and atomic publishing of a run's output.
package emitter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GeneratedMarker opens every source file an emitter renders. A forced write
// removes files carrying it that the new set no longer contains.
const GeneratedMarker = "// Code generated by swagger2client. DO NOT EDIT."

// FileSet maps slash-separated relative paths to file contents.
type FileSet map[string][]byte

// Paths returns the relative paths in sorted order.
func (set FileSet) Paths() []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Plan lists the files in deterministic order.
func Plan(files FileSet) []PlannedFile {
	planned := make([]PlannedFile, 0, len(files))
	for _, rel := range files.Paths() {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}
	return planned
}

// WriteOptions controls publishing.
type WriteOptions struct {
	Force  bool // overwrite files in a non-empty output directory
	DryRun bool // plan only
}

// Write publishes files under outDir. Every file is first written to a staging directory
// next to outDir; nothing becomes visible at outDir until all of them were written.
// A missing outDir is created by renaming the staging directory into place; an
// existing one receives each staged file by rename, after which generated files
// left over from earlier runs are removed.
func Write(outDir string, files FileSet, opts WriteOptions) ([]PlannedFile, error) {
	planned := Plan(files)
	if opts.DryRun {
		return planned, nil
	}
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve out dir: %w", err)
	}
	exists, err := validateOutputDirectory(abs, opts.Force)
	if err != nil {
		return nil, err
	}
	parent := filepath.Dir(abs)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("ensure parent directory %s: %w", parent, err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(abs)+".staging-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, rel := range files.Paths() {
		if err := writeFile(staging, rel, files[rel]); err != nil {
			return nil, err
		}
	}

	if !exists {
		// MkdirTemp creates 0700 directories.
		if err := os.Chmod(staging, 0o755); err != nil {
			return nil, fmt.Errorf("chmod staging directory: %w", err)
		}
		if err := os.Rename(staging, abs); err != nil {
			return nil, fmt.Errorf("publish %s: %w", abs, err)
		}
		return planned, nil
	}
	for _, rel := range files.Paths() {
		src := filepath.Join(staging, filepath.FromSlash(rel))
		dst := filepath.Join(abs, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, fmt.Errorf("ensure target directory for %s: %w", rel, err)
		}
		if err := os.Rename(src, dst); err != nil {
			return nil, fmt.Errorf("publish %s: %w", rel, err)
		}
	}
	if err := pruneStale(abs, files); err != nil {
		return nil, err
	}
	return planned, nil
}

// pruneStale removes generated files under dir that files does not contain.
// Hidden entries, node_modules and files without GeneratedMarker are left alone.
func pruneStale(dir string, files FileSet) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if _, ok := files[filepath.ToSlash(rel)]; ok {
			return nil
		}
		generated, err := hasMarker(p)
		if err != nil || !generated {
			return err
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("remove stale %s: %w", filepath.ToSlash(rel), err)
		}
		return nil
	})
}

func hasMarker(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, len(GeneratedMarker))
	n, _ := io.ReadFull(f, head)
	return bytes.Equal(head[:n], []byte(GeneratedMarker)), nil
}

// validateOutputDirectory reports whether absPath exists and rejects a non-empty
// directory unless force is set.
func validateOutputDirectory(absPath string, force bool) (bool, error) {
	stat, err := os.Stat(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot access output directory %q: %w", absPath, err)
	}
	if !stat.IsDir() {
		return false, fmt.Errorf("output path %q is not a directory", absPath)
	}
	if force {
		return true, nil
	}
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return false, fmt.Errorf("cannot read output directory %q: %w", absPath, err)
	}
	if len(entries) > 0 {
		return false, fmt.Errorf("output directory %q is not empty (use --force to overwrite)", absPath)
	}
	return true, nil
}

func writeFile(baseDir, rel string, content []byte) error {
	p := filepath.Join(baseDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", rel, err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", rel, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", rel, err)
	}
	return f.Close()
}
