// Package report pairs up the accesses surviving at the program's entry
// points and prints the conflicting ones.
package report

import (
	"sort"

	"github.com/logrusorgru/aurora"
	log "github.com/sirupsen/logrus"

	"github.com/o2lab/racer/accesspath"
	"github.com/o2lab/racer/domain"
)

// Access is one recorded access together with the precondition it survived
// under at an entry point.
type Access struct {
	Elem domain.TraceElem
	Pre  domain.AccessPrecondition
}

// Race is a pair of accesses to the same path that can run concurrently, at
// least one of them a write.
type Race struct {
	Path          accesspath.Path
	First, Second Access
}

// Collect indexes the exit states of the entry points by access path and
// pairs up the conflicting accesses. The result is deterministic.
func Collect(states []domain.State) []Race {
	byPath := make(map[accesspath.Path][]Access)
	seen := make(map[Access]bool)
	for _, s := range states {
		for pre, elems := range s.Accesses {
			if pre.Kind == domain.Unprotected && pre.Param >= 0 {
				// Still conditional at an entry point: the path is reachable
				// only through a formal nobody binds, hence never shared.
				continue
			}
			for e := range elems {
				acc := Access{Elem: e, Pre: pre}
				if seen[acc] {
					continue
				}
				seen[acc] = true
				byPath[e.Access.Path] = append(byPath[e.Access.Path], acc)
			}
		}
	}

	paths := make([]accesspath.Path, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Compare(paths[j]) < 0 })

	var races []Race
	for _, p := range paths {
		accs := byPath[p]
		sort.Slice(accs, func(i, j int) bool { return compareAccess(accs[i], accs[j]) < 0 })
		for i := 0; i < len(accs); i++ {
			for j := i + 1; j < len(accs); j++ {
				if racesWith(accs[i], accs[j]) {
					races = append(races, Race{Path: p, First: accs[i], Second: accs[j]})
				}
			}
		}
	}
	return races
}

func racesWith(a, b Access) bool {
	if !a.Elem.IsWrite() && !b.Elem.IsWrite() {
		return false
	}
	return !exclusive(a.Pre, b.Pre)
}

// exclusive reports whether the two preconditions share an excluder: two
// lock-protected accesses hold the same (single, coarse) lock, two
// main-thread accesses run on the same thread.
func exclusive(p, q domain.AccessPrecondition) bool {
	if p.Kind != domain.Protected || q.Kind != domain.Protected {
		return false
	}
	pLock := p.Excluder == domain.ByLock || p.Excluder == domain.ByBoth
	qLock := q.Excluder == domain.ByLock || q.Excluder == domain.ByBoth
	pThread := p.Excluder == domain.ByThread || p.Excluder == domain.ByBoth
	qThread := q.Excluder == domain.ByThread || q.Excluder == domain.ByBoth
	return (pLock && qLock) || (pThread && qThread)
}

func compareAccess(a, b Access) int {
	if c := a.Pre.Compare(b.Pre); c != 0 {
		return c
	}
	return a.Elem.Compare(b.Elem)
}

// Print logs each race in a fixed banner format.
func Print(races []Race) {
	for _, race := range races {
		log.Println(aurora.Red("========== DATA RACE =========="))
		log.Printf("  on %s", aurora.Magenta(race.Path.String()))
		printAccess(race.First)
		printAccess(race.Second)
		log.Println(aurora.Red("==============================="))
	}
}

func printAccess(a Access) {
	log.Printf("  %s of %s at %s:%d [%s]",
		aurora.Cyan(a.Elem.Access.Kind.String()), a.Elem.Access.Path,
		a.Elem.Pos.Filename, a.Elem.Pos.Line, a.Pre)
	if a.Elem.Trace != "" {
		log.Printf("    call chain: %s", a.Elem.Trace)
	}
}
