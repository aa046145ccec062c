package analyzer

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/o2lab/racer/accesspath"
	"github.com/o2lab/racer/pass"
	"github.com/o2lab/racer/report"
)

func analyzeSource(t *testing.T, src string) []report.Race {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "main.go", src, parser.SkipObjectResolution)
	require.NoError(t, err)
	conf := &types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	pkg, _, err := ssautil.BuildPackage(conf, fset, types.NewPackage("main", ""),
		[]*ast.File{f}, ssa.SanityCheckFunctions)
	require.NoError(t, err)

	a := NewAnalyzerConfig(nil, nil, pass.Models{})
	races, err := a.Analyze(pkg.Prog)
	require.NoError(t, err)
	return races
}

func racePaths(races []report.Race) []string {
	var out []string
	for _, r := range races {
		out = append(out, r.Path.String())
	}
	return out
}

func TestWorkerGoroutineRace(t *testing.T) {
	races := analyzeSource(t, `package main

import "sync"

var mu sync.Mutex
var guarded int
var bare int

func worker() {
	mu.Lock()
	guarded++
	mu.Unlock()
	bare++
}

func main() {
	go worker()
	mu.Lock()
	guarded++
	mu.Unlock()
	bare++
}
`)
	paths := racePaths(races)
	require.Contains(t, paths, accesspath.GlobalVar("main.bare").String(),
		"the unguarded counter races between main and the worker")
	require.NotContains(t, paths, accesspath.GlobalVar("main.guarded").String(),
		"the mutex-guarded counter does not race")
}

func TestClosureCaptureRace(t *testing.T) {
	races := analyzeSource(t, `package main

type counter struct{ n int }

func main() {
	c := &counter{}
	go func() {
		c.n++
	}()
	c.n++
}
`)
	require.NotEmpty(t, races, "the captured counter is written by two goroutines")
	for _, r := range races {
		require.True(t, r.First.Elem.IsWrite() || r.Second.Elem.IsWrite())
	}
}

func TestDirectClosureCallRace(t *testing.T) {
	races := analyzeSource(t, `package main

func set(p *int) {
	func() {
		*p = 1
	}()
}

func main() {
	x := 0
	go set(&x)
	set(&x)
}
`)
	require.NotEmpty(t, races,
		"the write reaches the argument through the captured pointer on both threads")
	for _, r := range races {
		require.True(t, r.First.Elem.IsWrite() || r.Second.Elem.IsWrite())
	}
}

func TestOwnedAllocationDoesNotRace(t *testing.T) {
	races := analyzeSource(t, `package main

type counter struct{ n int }

func bump(c *counter) {
	c.n++
}

func main() {
	c := &counter{}
	bump(c)
	bump(c)
}
`)
	require.Empty(t, races, "a thread-local structure never races")
}

func TestLockedCallChainDoesNotRace(t *testing.T) {
	races := analyzeSource(t, `package main

import "sync"

var mu sync.Mutex
var total int

func add() {
	total++
}

func locked() {
	mu.Lock()
	defer mu.Unlock()
	add()
}

func main() {
	go locked()
	locked()
}
`)
	require.Empty(t, races, "every write happens under the same lock")
}

func TestMainThreadOnlyAccessesDoNotRace(t *testing.T) {
	races := analyzeSource(t, `package main

var state int

func step() {
	state++
}

func main() {
	step()
	step()
}
`)
	require.Empty(t, races, "sequential accesses on the main thread are exclusive")
}

func TestNoMainFunction(t *testing.T) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", "package p\n\nfunc f() {}\n", parser.SkipObjectResolution)
	require.NoError(t, err)
	conf := &types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	pkg, _, err := ssautil.BuildPackage(conf, fset, types.NewPackage("p", ""),
		[]*ast.File{f}, ssa.SanityCheckFunctions)
	require.NoError(t, err)

	a := NewAnalyzerConfig(nil, nil, pass.Models{})
	_, err = a.Analyze(pkg.Prog)
	require.Error(t, err)
}
