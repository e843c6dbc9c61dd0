package tarball

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultExcludePatterns is the built-in include-filter policy from §4.3: it
// never changes what's handed to the cache, only what eventually lands on
// disk when a caller chooses to apply it.
var defaultExcludePatterns = []string{
	".git",
	".git/**",
	"node_modules/.bin",
	"node_modules/.bin/**",
	"test/**",
	"tests/**",
	"__tests__/**",
	"*.md",
	"LICENSE*",
	"license*",
	"*.map",
	".eslintrc*",
	".prettierrc*",
	".travis.yml",
	".github/**",
	"*.ts.map",
}

// Filter decides which extracted paths get materialized to a real
// filesystem. It is a policy layer, not a correctness boundary: callers that
// want the raw extracted set (e.g. the package cache) never go through it.
type Filter struct {
	matcher *gitignore.GitIgnore
}

// NewFilter compiles the default exclude list. Callers who want a custom
// policy can build their own gitignore.GitIgnore and wrap it the same way.
func NewFilter() *Filter {
	return &Filter{matcher: gitignore.CompileIgnoreLines(defaultExcludePatterns...)}
}

// Include reports whether relPath should be written to the target
// filesystem.
func (f *Filter) Include(relPath string) bool {
	return !f.matcher.MatchesPath(relPath)
}

// Apply returns the subset of files that pass the include predicate.
func (f *Filter) Apply(files map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(files))
	for path, data := range files {
		if f.Include(path) {
			out[path] = data
		}
	}
	return out
}
