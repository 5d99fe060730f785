// Package descriptor discovers tool module directories under a common root
// and infers how each one must be loaded.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// EntryFile is the manifest every module directory must contain.
	EntryFile = "module.yaml"
	// MarkerFile marks a module as a package: its manifest may reference
	// sibling fragment files and inherit the marker's defaults.
	MarkerFile = "index.yaml"
)

// Strategy selects how a module's entry point is loaded.
type Strategy int

const (
	// StrategyFlat loads the entry point alone, with no package context.
	StrategyFlat Strategy = iota
	// StrategyPackage loads the entry point inside a package context
	// rooted at the module directory, so relative references resolve
	// against files in that directory.
	StrategyPackage
)

func (s Strategy) String() string {
	if s == StrategyPackage {
		return "package"
	}
	return "flat"
}

// Descriptor identifies one discovered module. Immutable after discovery.
type Descriptor struct {
	Name     string // directory name
	Dir      string // absolute or root-relative module directory
	Strategy Strategy
	Prefix   string // mount prefix, "/" + Name
}

// Discover enumerates candidate module directories under root, sorted by
// name for deterministic mount order. Directories without an entry-point
// manifest are silently skipped. A missing or unreadable root is the only
// error; it aborts startup.
func Discover(root string) ([]Descriptor, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read modules root: %w", err)
	}

	var out []Descriptor
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		entry := filepath.Join(dir, EntryFile)
		if _, err := os.Stat(entry); err != nil {
			continue
		}
		out = append(out, Descriptor{
			Name:     e.Name(),
			Dir:      dir,
			Strategy: detectStrategy(dir, entry),
			Prefix:   "/" + e.Name(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// detectStrategy infers the load strategy without executing anything: the
// package marker file wins, otherwise the entry-point text is scanned for
// relative include syntax. The two strategies need different resolution
// rules for intra-module references, and the choice must be made from
// static inspection alone.
func detectStrategy(dir, entry string) Strategy {
	if _, err := os.Stat(filepath.Join(dir, MarkerFile)); err == nil {
		return StrategyPackage
	}
	data, err := os.ReadFile(entry)
	if err == nil && hasRelativeInclude(string(data)) {
		return StrategyPackage
	}
	return StrategyFlat
}

// hasRelativeInclude reports whether the manifest text references sibling
// fragment files ($include: ./...). Text sniffing is deliberately shallow;
// the loader does the real parse.
func hasRelativeInclude(src string) bool {
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		if !strings.HasPrefix(line, "$include:") {
			continue
		}
		target := strings.TrimSpace(strings.TrimPrefix(line, "$include:"))
		target = strings.Trim(target, `"'`)
		if strings.HasPrefix(target, "./") {
			return true
		}
	}
	return false
}
