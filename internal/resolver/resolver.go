package resolver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pyr-sh/dag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"webpm/internal/pmerr"
	"webpm/internal/registry"
	"webpm/internal/semver"
)

// Resolver is the C5 dependency resolver: it composes the Registry
// capability and the SemVer engine into the tree-building algorithm of
// §4.5.
type Resolver struct {
	registry *registry.Client
}

// New builds a Resolver over client.
func New(client *registry.Client) *Resolver {
	return &Resolver{registry: client}
}

// call holds the per-Resolve-invocation state the algorithm's steps 1–6
// thread through every resolvePackage call.
type call struct {
	ctx context.Context

	// content dedupes the registry-fetch + version-pick step by "name@range"
	// so two edges requesting the same (name, range) share one resolution,
	// per §4.5 step 3e. golang.org/x/sync is already a dependency for
	// errgroup; its singleflight package is the idiomatic in-process
	// request-coalescing primitive for exactly this shape.
	content singleflight.Group

	iterationCount int64
	maxIterations  int
	maxDepth       int
	peer           bool
	onProgress     func(name string, depth int)

	warningsMu sync.Mutex
	warnings   *multierror.Error

	graphMu sync.Mutex
	graph   *dag.AcyclicGraph
}

func (c *call) warnf(format string, args ...interface{}) {
	c.warningsMu.Lock()
	defer c.warningsMu.Unlock()
	c.warnings = multierror.Append(c.warnings, fmt.Errorf(format, args...))
}

func (c *call) recordEdge(from, to string) {
	c.graphMu.Lock()
	defer c.graphMu.Unlock()
	c.graph.Add(from)
	c.graph.Add(to)
	c.graph.Connect(dag.BasicEdge(from, to))
}

// Resolve builds the dependency tree for topLevel (name -> range), per
// §4.5's numbered algorithm.
func (r *Resolver) Resolve(ctx context.Context, topLevel map[string]string, opts Options) (*Result, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	c := &call{
		ctx:           ctx,
		maxIterations: opts.MaxIterations,
		maxDepth:      opts.MaxDepth,
		peer:          opts.Peer,
		onProgress:    opts.OnProgress,
		graph:         &dag.AcyclicGraph{},
	}

	root := &Node{Name: "", Version: "", Depth: 0, Children: map[string]*Node{}}
	c.graph.Add("root")

	eg, egCtx := errgroup.WithContext(ctx)
	c.ctx = egCtx

	var mu sync.Mutex
	for name, rangeText := range topLevel {
		name, rangeText := name, rangeText
		eg.Go(func() error {
			child, err := r.resolvePackage(c, name, rangeText, 1, root)
			if err != nil {
				return err
			}
			if child != nil {
				mu.Lock()
				root.Children[name] = child
				mu.Unlock()
				c.recordEdge("root", fmt.Sprintf("%s@%s", child.Name, child.Version))
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := c.graph.Validate(); err != nil {
		// The protection pair (ancestor walk + iteration cap) should make
		// this unreachable; treat it as a structural cross-check rather
		// than a second source of truth.
		c.warnf("post-resolution cycle cross-check failed: %s", err)
	}

	var warnings []string
	if c.warnings != nil {
		for _, w := range c.warnings.Errors {
			warnings = append(warnings, w.Error())
		}
	}

	return &Result{Tree: root, Warnings: warnings}, nil
}

// resolvePackage implements §4.5 steps 3–6 for a single (name, range) edge
// from parent at the given depth.
func (r *Resolver) resolvePackage(c *call, name, rangeText string, depth int, parent *Node) (*Node, error) {
	n := atomic.AddInt64(&c.iterationCount, 1)
	if int(n) > c.maxIterations {
		return nil, pmerr.New(pmerr.CodeResolutionLimit, "exceeded maximum resolution iterations")
	}

	if depth > c.maxDepth {
		c.warnf("max depth exceeded resolving %s at depth %d", name, depth)
		return nil, nil
	}

	// Cycle detection is scoped to this node's own ancestor chain (the
	// Parent links built up the call stack for this branch), not to a
	// call-wide "currently expanding" set: a name legitimately resolves
	// concurrently under two unrelated branches (the diamond case — two
	// siblings that both depend on the same package), and a call-wide set
	// would race and falsely flag the second branch as a cycle. Walking
	// Parent is race-free since each node's Parent is fixed at construction
	// before any goroutine reads it.
	for p := parent; p != nil; p = p.Parent {
		if p.Name == name {
			return nil, nil // structural ancestor cycle
		}
	}

	if c.onProgress != nil {
		c.onProgress(name, depth)
	}

	resolved, err := r.resolveContent(c, name, rangeText)
	if err != nil {
		if pmerr.Is(err, pmerr.CodeResolutionLimit) {
			return nil, err
		}
		c.warnf("failed to resolve %s@%s: %s", name, rangeText, err)
		return nil, nil
	}

	node := &Node{
		Name:     name,
		Version:  resolved.Version,
		Resolved: resolved,
		Parent:   parent,
		Depth:    depth,
		Children: map[string]*Node{},
	}

	deps := resolved.Dependencies
	if c.peer {
		for peerName, peerRange := range resolved.PeerDependencies {
			if ancestorSatisfies(node, peerName, peerRange) {
				continue
			}
			if deps == nil {
				deps = map[string]string{}
			}
			if _, already := deps[peerName]; !already {
				deps[peerName] = peerRange
			}
		}
	}

	var mu sync.Mutex
	eg, _ := errgroup.WithContext(c.ctx)
	for depName, depRange := range deps {
		depName, depRange := depName, depRange
		eg.Go(func() error {
			child, err := r.resolvePackage(c, depName, depRange, depth+1, node)
			if err != nil {
				return err
			}
			if child != nil {
				mu.Lock()
				node.Children[depName] = child
				mu.Unlock()
				c.recordEdge(fmt.Sprintf("%s@%s", name, resolved.Version), fmt.Sprintf("%s@%s", child.Name, child.Version))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return node, nil
}

// resolveContent fetches metadata, picks a version via SemVer maxSatisfying
// or a dist-tag, and returns the memoized ResolvedPackage for (name,
// version). Concurrent callers requesting the same (name, range) share one
// in-flight fetch, per §4.5 step 3e.
func (r *Resolver) resolveContent(c *call, name, rangeText string) (registry.ResolvedPackage, error) {
	key := name + "@" + rangeText
	v, err, _ := c.content.Do(key, func() (interface{}, error) {
		metadata, err := r.registry.GetPackageMetadata(c.ctx, name)
		if err != nil {
			return nil, err
		}

		rng := semver.ParseRange(rangeText)

		var pickedVersion string
		if semver.IsTag(rng) {
			tagged, ok := metadata.DistTags[rng.Tag]
			if !ok {
				return nil, pmerr.ForPackage(pmerr.CodeVersionNotFound, name, "no such dist-tag: "+rng.Tag)
			}
			pickedVersion = tagged
		} else {
			versions := make([]semver.Version, 0, len(metadata.Versions))
			parsed := map[string]semver.Version{}
			for vs := range metadata.Versions {
				pv, err := semver.ParseVersion(vs)
				if err != nil {
					continue
				}
				versions = append(versions, pv)
				parsed[pv.String()] = pv
			}
			best, ok := semver.MaxSatisfying(versions, rng)
			if !ok {
				return nil, pmerr.ForPackage(pmerr.CodeVersionNotFound, name, "no version satisfies "+rangeText)
			}
			pickedVersion = best.String()
		}

		info, ok := metadata.Versions[pickedVersion]
		if !ok {
			return nil, pmerr.ForVersion(pmerr.CodeVersionNotFound, name, pickedVersion, "version missing from metadata")
		}

		return registry.ResolvedPackage{
			Name:             name,
			Version:          info.Version,
			TarballURL:       info.Dist.Tarball,
			Integrity:        info.Dist.Integrity,
			Dependencies:     copyMap(info.Dependencies),
			PeerDependencies: copyMap(info.PeerDependencies),
		}, nil
	})
	if err != nil {
		return registry.ResolvedPackage{}, err
	}
	return v.(registry.ResolvedPackage), nil
}

// ancestorSatisfies reports whether any ancestor of node already provides a
// version of peerName that satisfies peerRange, per §4.5 step 5.
func ancestorSatisfies(node *Node, peerName, peerRange string) bool {
	for p := node; p != nil; p = p.Parent {
		if p.Name != peerName {
			continue
		}
		v, err := semver.ParseVersion(p.Version)
		if err != nil {
			continue
		}
		return semver.Satisfies(v, semver.ParseRange(peerRange))
	}
	return false
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
