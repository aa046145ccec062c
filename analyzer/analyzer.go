// Package analyzer loads a program, computes per-function summaries bottom-up
// over the static call graph, and reports the races observable from the
// program's entry points.
package analyzer

import (
	"fmt"
	goruntime "runtime"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/o2lab/racer/domain"
	"github.com/o2lab/racer/pass"
	"github.com/o2lab/racer/report"
)

type AnalyzerConfig struct {
	Paths            []string
	ExcludedPackages []string
	Models           pass.Models
}

func NewAnalyzerConfig(paths []string, excluded []string, models pass.Models) *AnalyzerConfig {
	return &AnalyzerConfig{
		Paths:            paths,
		ExcludedPackages: excluded,
		Models:           models,
	}
}

// Run loads the packages at the configured paths, builds SSA and analyzes
// the whole program.
func (a *AnalyzerConfig) Run() ([]report.Race, error) {
	log.Infof("Loading packages %v", a.Paths)
	initial, err := packages.Load(&packages.Config{
		Mode:  packages.LoadAllSyntax,
		Tests: true,
	}, a.Paths...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if packages.PrintErrors(initial) > 0 {
		return nil, fmt.Errorf("packages contain errors")
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("package list empty")
	}
	for _, pkg := range initial {
		log.Info(pkg.ID, pkg.GoFiles)
	}
	log.Infoln("Packages loaded. Building SSA...")
	prog, _ := ssautil.AllPackages(initial, ssa.BuilderMode(0))
	prog.Build()
	log.Infof("SSA built for %d packages", len(prog.AllPackages()))
	return a.Analyze(prog)
}

// Analyze runs the bottom-up summary computation over an already built
// program. Functions are analyzed in waves: a function is ready once every
// callee it can reach statically has a summary. A wave runs in parallel;
// summaries are write-once, so readers in later waves need no ordering
// beyond the wave barrier.
func (a *AnalyzerConfig) Analyze(prog *ssa.Program) ([]report.Race, error) {
	fns := a.collectFunctions(prog)
	log.Infof("Analyzing %d functions", len(fns))

	callees := make(map[*ssa.Function][]*ssa.Function, len(fns))
	for fn := range fns {
		callees[fn] = staticCallees(fn, fns)
	}

	summaries := xsync.NewMap[*ssa.Function, domain.Summary]()
	lookup := func(fn *ssa.Function) (domain.Summary, bool) {
		return summaries.Load(fn)
	}

	pending := fns
	for len(pending) > 0 {
		wave := readyWave(pending, callees, summaries)
		if len(wave) == 0 {
			// A call cycle: analyze the rest with whatever summaries exist.
			// Calls with no summary yet are treated as having no effect.
			for fn := range pending {
				wave = append(wave, fn)
			}
			log.Debugf("breaking a cycle of %d functions", len(wave))
		}
		sort.Slice(wave, func(i, j int) bool { return wave[i].String() < wave[j].String() })

		var wg errgroup.Group
		wg.SetLimit(goruntime.NumCPU())
		for _, fn := range wave {
			wg.Go(func() error {
				log.Debugf("summarizing %s", fn)
				_, sum := pass.NewFnPass(fn, a.Models, lookup, false).Run()
				summaries.Store(fn, sum)
				return nil
			})
		}
		_ = wg.Wait()
		for _, fn := range wave {
			delete(pending, fn)
		}
	}

	roots := rootFunctions(prog)
	if len(roots) == 0 {
		return nil, fmt.Errorf("no main function found")
	}
	// Entry points run on the distinguished main thread, so they are
	// re-analyzed with the thread fact their cached summaries lack.
	var rootStates []domain.State
	for _, root := range roots {
		exit, _ := pass.NewFnPass(root, a.Models, lookup, true).Run()
		log.Debugf("entry %s: %s", root, exit)
		rootStates = append(rootStates, exit)
	}

	races := report.Collect(rootStates)
	log.Infof("Found %d race(s)", len(races))
	return races, nil
}

// collectFunctions gathers every function with a body outside the excluded
// package trees. Exclusion matches on the first path segment, so "golang.org"
// prunes everything beneath it.
func (a *AnalyzerConfig) collectFunctions(prog *ssa.Program) map[*ssa.Function]bool {
	excluded := make(map[string]bool, len(a.ExcludedPackages))
	for _, pkg := range a.ExcludedPackages {
		excluded[pkg] = true
	}
	fns := make(map[*ssa.Function]bool)
	for fn := range ssautil.AllFunctions(prog) {
		if len(fn.Blocks) == 0 {
			continue
		}
		if fn.Pkg != nil {
			path := fn.Pkg.Pkg.Path()
			if excluded[path] || excluded[strings.Split(path, "/")[0]] {
				log.Debugf("excluding %s", fn)
				continue
			}
		}
		fns[fn] = true
	}
	return fns
}

// staticCallees lists the functions fn can invoke through static calls,
// deferred calls and go statements, restricted to the analyzed set.
func staticCallees(fn *ssa.Function, fns map[*ssa.Function]bool) []*ssa.Function {
	seen := make(map[*ssa.Function]bool)
	var out []*ssa.Function
	add := func(callee *ssa.Function) {
		if callee != nil && fns[callee] && !seen[callee] {
			seen[callee] = true
			out = append(out, callee)
		}
	}
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			call, ok := instr.(ssa.CallInstruction)
			if !ok {
				continue
			}
			common := call.Common()
			if mc, ok := common.Value.(*ssa.MakeClosure); ok {
				add(mc.Fn.(*ssa.Function))
				continue
			}
			add(common.StaticCallee())
		}
	}
	return out
}

func readyWave(pending map[*ssa.Function]bool, callees map[*ssa.Function][]*ssa.Function,
	summaries *xsync.Map[*ssa.Function, domain.Summary]) []*ssa.Function {
	var wave []*ssa.Function
	for fn := range pending {
		ready := true
		for _, c := range callees[fn] {
			if c == fn {
				continue // self-recursion is broken at the call site
			}
			if _, done := summaries.Load(c); !done && pending[c] {
				ready = false
				break
			}
		}
		if ready {
			wave = append(wave, fn)
		}
	}
	return wave
}

// rootFunctions returns the main function of every main package, in a stable
// order.
func rootFunctions(prog *ssa.Program) []*ssa.Function {
	var roots []*ssa.Function
	for _, pkg := range prog.AllPackages() {
		if pkg.Pkg.Name() == "main" {
			if main := pkg.Func("main"); main != nil {
				roots = append(roots, main)
			}
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].String() < roots[j].String() })
	return roots
}
