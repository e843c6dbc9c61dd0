// Package resolver implements the dependency resolver (C5): builds the
// dependency tree from a set of top-level requirements, with cycle and
// iteration guards; flattening it to a path-keyed set is left to
// internal/hoist. Grounded on the
// teacher's internal/lockfile.transitiveClosure (errgroup-driven concurrent
// recursion over a visited-keys set) generalized from "walk an existing
// lockfile" to "resolve fresh from the registry". Cycle detection walks
// each node's own Parent chain rather than a call-wide set, since the
// latter races across concurrent sibling branches that share a dependency.
package resolver

import (
	"webpm/internal/registry"
)

// DefaultMaxIterations bounds total resolvePackage invocations across one
// Resolve call, per §4.5 step 3a.
const DefaultMaxIterations = 10000

// DefaultMaxDepth bounds recursion depth, per §4.5 Options.
const DefaultMaxDepth = 50

// Node is a node in the resolved dependency tree, per §3's DependencyNode.
type Node struct {
	Name     string
	Version  string
	Resolved registry.ResolvedPackage
	Parent   *Node
	Depth    int
	Children map[string]*Node
}

// Flat is the path-keyed flattened view, per §3's FlatDependency — populated
// by internal/hoist, not by the resolver itself (the resolver's Result
// carries only the tree; flattening is a distinct concern, per §4.6).
type Flat struct {
	Name      string
	Version   string
	Resolved  registry.ResolvedPackage
	Integrity string
	Path      string
}

// Options configures a Resolve call, per §4.5.
type Options struct {
	Dev           bool
	Peer          bool
	MaxDepth      int
	OnProgress    func(name string, depth int)
	MaxIterations int
}

// Result is the outcome of a Resolve call: the tree plus any non-fatal
// warnings collected along the way.
type Result struct {
	Tree     *Node
	Warnings []string
}
