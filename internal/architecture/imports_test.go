package architecture_test

import (
	"bytes"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
)

// layer groups package directories under internal/ with the internal
// packages they must not import.
type layer struct {
	name string
	dirs []string
	deny []string
}

var layers = []layer{
	{
		name: "platform",
		dirs: []string{"platform"},
		deny: []string{"app", "client", "config", "drafts", "http", "hyperparams", "observability", "results", "trainapi", "trainform"},
	},
	// hyperparams is the shared schema both binaries validate against.
	{name: "hyperparams", dirs: []string{"hyperparams"}, deny: []string{""}},
	{
		name: "ambient",
		dirs: []string{"observability", "config"},
		deny: []string{"app", "drafts", "http", "trainapi", "trainform"},
	},
	{
		name: "console",
		dirs: []string{"client", "results", "trainform", "drafts"},
		deny: []string{"app", "http", "trainapi"},
	},
	{
		name: "trainapi",
		dirs: []string{"trainapi"},
		deny: []string{"app", "drafts", "http", "results", "trainform"},
	},
	{name: "http", dirs: []string{"http"}, deny: []string{"app"}},
}

type module struct {
	root string
	path string
}

func loadModule(t *testing.T) module {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		raw, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil {
			for _, line := range bytes.Split(raw, []byte("\n")) {
				if rest, ok := strings.CutPrefix(strings.TrimSpace(string(line)), "module "); ok {
					return module{root: dir, path: strings.TrimSpace(rest)}
				}
			}
			t.Fatalf("no module line in %s/go.mod", dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found")
		}
		dir = parent
	}
}

// eachImport calls fn for every import of every .go file below dir, with
// the file path relative to the module root.
func (m module) eachImport(t *testing.T, dir string, fn func(rel, imp string)) {
	t.Helper()
	fset := token.NewFileSet()
	err := filepath.WalkDir(filepath.Join(m.root, dir), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
			return err
		}
		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return err
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			if imp, err := strconv.Unquote(spec.Path.Value); err == nil {
				fn(filepath.ToSlash(rel), imp)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
}

func layerOf(rel string) *layer {
	for i := range layers {
		for _, d := range layers[i].dirs {
			if strings.HasPrefix(rel, "internal/"+d+"/") {
				return &layers[i]
			}
		}
	}
	return nil
}

func report(t *testing.T, title string, problems []string) {
	t.Helper()
	if len(problems) == 0 {
		return
	}
	t.Fatalf("%s:\n- %s", title, strings.Join(problems, "\n- "))
}

func TestImportBoundaries(t *testing.T) {
	m := loadModule(t)
	internal := m.path + "/internal/"

	var problems []string
	m.eachImport(t, "internal", func(rel, imp string) {
		l := layerOf(rel)
		if l == nil || !strings.HasPrefix(imp, internal) {
			return
		}
		for _, d := range l.deny {
			if strings.HasPrefix(imp, internal+d) {
				problems = append(problems, fmt.Sprintf("%s (%s) imports %q", rel, l.name, imp))
				return
			}
		}
	})
	report(t, "import boundary violations", problems)
}

func TestCommandsOnlyImportApp(t *testing.T) {
	m := loadModule(t)
	allowed := []string{
		m.path + "/internal/app",
		m.path + "/internal/platform/shutdown",
	}

	var problems []string
	m.eachImport(t, "cmd", func(rel, imp string) {
		if strings.HasPrefix(imp, m.path+"/") && !slices.Contains(allowed, imp) {
			problems = append(problems, fmt.Sprintf("%s imports %q", rel, imp))
		}
	})
	report(t, "cmd/ must wire through internal/app", problems)
}

func TestEveryInternalPackageHasALayer(t *testing.T) {
	m := loadModule(t)
	var problems []string
	m.eachImport(t, "internal", func(rel, _ string) {
		if strings.HasPrefix(rel, "internal/app/") || strings.HasPrefix(rel, "internal/architecture/") {
			return
		}
		if layerOf(rel) == nil && !slices.Contains(problems, rel) {
			problems = append(problems, rel)
		}
	})
	report(t, "files outside every layer", problems)
}
