// Package hoist implements the hoister (C6): it flattens a resolved
// dependency tree into npm's node_modules/... path layout by depth-first
// preorder, first-seen-wins placement. Grounded on the same
// tree-walk-with-visited-state shape as the teacher's
// internal/lockfile.transitiveClosure, generalized from "collect a set" to
// "assign paths".
package hoist

import (
	"sort"

	"webpm/internal/resolver"
)

// Hoist walks root depth-first preorder and returns the flattened
// path→FlatDependency map, per §4.6. Child iteration at each node is sorted
// by name so two invocations over the same tree always produce an
// identical map (the determinism property §4.6 requires).
func Hoist(root *resolver.Node) map[string]resolver.Flat {
	flat := map[string]resolver.Flat{}
	hoisted := map[string]string{} // name -> hoisted version, root-level bookkeeping
	for _, name := range sortedChildNames(root) {
		child := root.Children[name]
		walk(child, "", flat, hoisted)
	}
	return flat
}

// walk places child (reached via the edge from a node at parentPath) and
// recurses into its own children, per §4.6's three-way rule.
func walk(child *resolver.Node, parentPath string, flat map[string]resolver.Flat, hoisted map[string]string) {
	rootPath := "node_modules/" + child.Name

	hoistedVersion, alreadyHoisted := hoisted[child.Name]
	switch {
	case !alreadyHoisted:
		hoisted[child.Name] = child.Version
		placeAndRecurse(child, rootPath, flat, hoisted)

	case hoistedVersion == child.Version:
		// Already hoisted at this exact version: the parent resolves this
		// edge by ancestor lookup, nothing more to emit here. Nested
		// children under this specific edge still need to be reachable,
		// but since the node at rootPath is the same content this child
		// would have produced, no further placement work is needed for
		// this edge.

	default:
		// child conflicts with whatever is already hoisted under rootPath.
		// Normally that means nesting one level under the real parent's own
		// placement path — but child is itself one of the project's own
		// top-level dependencies here (parentPath == ""), so there is no
		// real parent directory to nest under. Nesting it under rootPath
		// instead of reusing rootPath keeps the already-hoisted entry (and
		// the hoisted bookkeeping that still describes it) intact, rather
		// than silently overwriting both with this conflicting version.
		nestRoot := parentPath
		if nestRoot == "" {
			nestRoot = rootPath
		}
		nestedPath := nestRoot + "/node_modules/" + child.Name
		placeAndRecurse(child, nestedPath, flat, hoisted)
	}
}

func placeAndRecurse(child *resolver.Node, path string, flat map[string]resolver.Flat, hoisted map[string]string) {
	flat[path] = resolver.Flat{
		Name:      child.Name,
		Version:   child.Version,
		Resolved:  child.Resolved,
		Integrity: child.Resolved.Integrity,
		Path:      path,
	}
	for _, name := range sortedChildNames(child) {
		grandchild := child.Children[name]
		walk(grandchild, path, flat, hoisted)
	}
}

func sortedChildNames(n *resolver.Node) []string {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
