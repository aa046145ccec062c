// Package config holds the analyzer's user-tunable settings: excluded
// package trees and the function models that give library calls semantics
// the analysis cannot derive itself.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/o2lab/racer/pass"
)

// ExcludedPkgs is the default set of package trees the analyzer does not
// descend into. Runtime and leaf stdlib packages contribute far more noise
// than races.
var ExcludedPkgs = []string{
	"runtime",
	"internal",
	"unsafe",
	"os",
	"crypto",
	"regexp",
	"strconv",
	"bytes",
	"math",
	"unicode",
	"encoding",
	"time",
	"reflect",
	"sort",
	"fmt",
	"strings",
	"errors",
}

type Config struct {
	ExcludedPkgs []string `yaml:"excludePkgs"`
	// Functional lists functions (by full ssa name, e.g. "pkg.Hash" or
	// "(*pkg.Cache).Get") whose results are the same on every call.
	Functional []string `yaml:"functional"`
	// MainThread lists predicates that are true only on the main thread.
	MainThread []string `yaml:"mainThread"`
	// LockHeld lists predicates that are true only under a lock.
	LockHeld []string `yaml:"lockHeld"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{ExcludedPkgs: ExcludedPkgs}
}

// Decode reads a yaml configuration file. An absent excludePkgs list falls
// back to the default exclusions rather than none.
func Decode(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.ExcludedPkgs == nil {
		c.ExcludedPkgs = ExcludedPkgs
	}
	return c, nil
}

// Models converts the configured name lists into the lookup tables the
// per-function pass consults.
func (c *Config) Models() pass.Models {
	return pass.Models{
		Functional: toSet(c.Functional),
		MainThread: toSet(c.MainThread),
		LockHeld:   toSet(c.LockHeld),
	}
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
