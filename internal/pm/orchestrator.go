package pm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/karrick/godirwalk"

	"webpm/internal/hoist"
	"webpm/internal/lockfile"
	"webpm/internal/manifest"
	"webpm/internal/pkgcache"
	"webpm/internal/pmerr"
	"webpm/internal/registry"
	"webpm/internal/resolver"
	"webpm/internal/tarball"
	"webpm/internal/vfs"
)

// maxConcurrentMaterializations bounds how many tarball
// download/verify/extract pipelines run at once during one install — a
// buffered-channel gate rather than a borrowed-but-mismatched gatedio
// semaphore (gatedio has no such primitive; see DESIGN.md).
const maxConcurrentMaterializations = 6

// PM is the orchestrator (C8), composing every other component against a
// single project rooted in fs.
type PM struct {
	fs       vfs.FS
	root     string
	registry *registry.Client
	resolver *resolver.Resolver
	cache    *pkgcache.Cache
	filter   *tarball.Filter
	logger   hclog.Logger
}

// New builds a PM over fs rooted at root, using client for registry access
// and cache for extracted-package storage.
func New(fs vfs.FS, root string, client *registry.Client, cache *pkgcache.Cache, logger hclog.Logger) *PM {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &PM{
		fs:       fs,
		root:     root,
		registry: client,
		resolver: resolver.New(client),
		cache:    cache,
		filter:   tarball.NewFilter(),
		logger:   logger,
	}
}

func (p *PM) manifestPath() string {
	return vfs.Join(p.root, "package.json")
}

func (p *PM) lockfilePath() string {
	return vfs.Join(p.root, "package-lock.json")
}

func (p *PM) nodeModulesPath() string {
	return vfs.Join(p.root, "node_modules")
}

func (p *PM) readManifest() (*manifest.Manifest, error) {
	if !p.fs.Exists(p.manifestPath()) {
		return manifest.Default(vfs.Base(p.root)), nil
	}
	data, err := p.fs.ReadFile(p.manifestPath())
	if err != nil {
		return nil, pmerr.New(pmerr.CodeInvalidPackageJSON, "reading package.json: "+err.Error())
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, pmerr.New(pmerr.CodeInvalidPackageJSON, err.Error())
	}
	return m, nil
}

func (p *PM) writeManifest(m *manifest.Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return p.fs.WriteFile(p.manifestPath(), data)
}

// Install implements §4.8's install algorithm.
func (p *PM) Install(ctx context.Context, packages []string, opts InstallOptions) (*InstallResult, error) {
	start := time.Now()
	result := &InstallResult{}

	phase := PhaseIdle
	p.logger.Debug("install phase", "phase", phase)
	phase = PhaseReadingManifest
	emitProgress := func(p ProgressPhase, current, total int, pkg, msg string) {
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressEvent{Phase: p, Current: current, Total: total, Package: pkg, Message: msg})
		}
	}

	m, err := p.readManifest()
	if err != nil {
		return p.failed(result, phase, err, start)
	}

	for _, spec := range packages {
		name, rangeOrTag := manifest.ParseSpecifier(spec)
		if !opts.NoSave {
			m.AddDependency(name, rangeOrTag, opts.SaveDev)
		}
	}

	var deps map[string]string
	if len(packages) > 0 {
		deps = map[string]string{}
		for _, spec := range packages {
			name, rangeOrTag := manifest.ParseSpecifier(spec)
			deps[name] = rangeOrTag
		}
	} else {
		deps = m.AllDependencies(opts.Production)
	}

	var existingLockfile *lockfile.Lockfile
	if !opts.Force && p.fs.Exists(p.lockfilePath()) {
		if data, err := p.fs.ReadFile(p.lockfilePath()); err == nil {
			if lf, warnings, err := lockfile.Parse(data, false); err == nil {
				existingLockfile = lf
				result.Warnings = append(result.Warnings, warnings...)
			} else {
				result.Warnings = append(result.Warnings, "ignoring unreadable lockfile: "+err.Error())
			}
		}
	}
	_ = existingLockfile // informational seed only, per §4.8 step 4

	phase = PhaseResolving
	var resolvedCount int
	resolveResult, err := p.resolver.Resolve(ctx, deps, resolver.Options{
		Peer: true,
		OnProgress: func(name string, depth int) {
			resolvedCount++
			emitProgress(ProgressResolving, resolvedCount, len(deps), name, "")
		},
	})
	if err != nil {
		return p.failed(result, phase, err, start)
	}
	result.Warnings = append(result.Warnings, resolveResult.Warnings...)

	flat := hoist.Hoist(resolveResult.Tree)

	phase = PhaseWritingFiles
	installed, pkgErrors := p.materializeAll(ctx, flat, opts, emitProgress)
	result.Installed = installed
	result.Errors = pkgErrors
	if diag := strings.TrimSpace(p.registry.Diagnostics()); diag != "" {
		result.Warnings = append(result.Warnings, strings.Split(diag, "\n")...)
	}

	phase = PhaseWritingLockfile
	newLockfile := &lockfile.Lockfile{
		Name:            m.Name,
		Version:         m.Version,
		LockfileVersion: lockfile.CurrentVersion,
		Requires:        true,
		Packages:        map[string]lockfile.Package{"": {Name: m.Name, Version: m.Version}},
	}
	for path, entry := range flat {
		newLockfile.Packages[path] = lockfile.Package{
			Version:      entry.Version,
			Resolved:     entry.Resolved.TarballURL,
			Integrity:    entry.Integrity,
			Dependencies: entry.Resolved.Dependencies,
		}
	}
	lockData, err := lockfile.Encode(newLockfile)
	if err != nil {
		return p.failed(result, phase, err, start)
	}
	if err := p.fs.WriteFile(p.lockfilePath(), lockData); err != nil {
		return p.failed(result, phase, err, start)
	}

	if !opts.NoSave {
		if err := p.writeManifest(m); err != nil {
			return p.failed(result, phase, err, start)
		}
	}

	phase = PhaseDone
	p.logger.Debug("install phase", "phase", phase)
	result.Success = len(result.Errors) == 0
	result.Duration = time.Since(start)
	return result, nil
}

func (p *PM) failed(result *InstallResult, phase InstallPhase, err error, start time.Time) (*InstallResult, error) {
	result.Success = false
	result.Duration = time.Since(start)
	p.logger.Error("install failed", "phase", phase, "error", err)
	return result, err
}

// materializeAll drives the per-package materialization machine of §4.9
// for every flat entry, bounded to maxConcurrentMaterializations concurrent
// pipelines via a buffered-channel gate.
func (p *PM) materializeAll(ctx context.Context, flat map[string]resolver.Flat, opts InstallOptions, emitProgress func(ProgressPhase, int, int, string, string)) ([]InstalledPackage, []PackageError) {
	gate := make(chan struct{}, maxConcurrentMaterializations)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var installed []InstalledPackage
	var errs []PackageError

	total := len(flat)
	var done int

	for path, entry := range flat {
		path, entry := path, entry
		wg.Add(1)
		gate <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-gate }()

			mu.Lock()
			done++
			current := done
			mu.Unlock()
			emitProgress(ProgressDownloading, current, total, entry.Name, "")

			ip, err := p.materializeOne(ctx, path, entry, opts.StrictSRI)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, PackageError{Name: entry.Name, Version: entry.Version, Err: err})
				return
			}
			if ip != nil {
				installed = append(installed, *ip)
			}
		}()
	}
	wg.Wait()
	return installed, errs
}

// materializeOne runs requested -> cache-hit|cache-miss -> downloaded ->
// verified -> extracted -> cached -> written for one flat entry.
func (p *PM) materializeOne(ctx context.Context, path string, entry resolver.Flat, strictSRI bool) (*InstalledPackage, error) {
	writePath := vfs.Join(p.root, path)
	stage := StageRequested
	logStage := func(s MaterializationStage) {
		stage = s
		p.logger.Trace("materialize stage", "package", entry.Name, "version", entry.Version, "stage", stage)
	}

	cached, ok := p.cache.Get(entry.Name, entry.Version)
	if ok {
		logStage(StageCacheHit)
	} else {
		logStage(StageCacheMiss)

		data, err := p.registry.DownloadTarball(ctx, entry.Resolved.TarballURL)
		if err != nil {
			return nil, err
		}
		logStage(StageDownloaded)

		if ok, err := p.registry.VerifyIntegrity(data, entry.Resolved.Integrity, strictSRI); err != nil {
			return nil, err
		} else if !ok {
			p.logger.Warn("integrity check failed", "package", entry.Name, "version", entry.Version)
		}
		logStage(StageVerified)

		extracted, err := tarball.Extract(data)
		if err != nil {
			return nil, err
		}
		logStage(StageExtracted)

		cached = pkgcache.Entry{
			Name:       entry.Name,
			Version:    entry.Version,
			TarballURL: entry.Resolved.TarballURL,
			Integrity:  entry.Resolved.Integrity,
			Files:      extracted.Files,
			Manifest:   extracted.Manifest,
			TotalSize:  extracted.TotalSize,
		}
		p.cache.Set(entry.Name, entry.Version, cached)
		logStage(StageCached)
	}

	filtered := p.filter.Apply(cached.Files)
	if err := p.fs.Mkdir(writePath, true); err != nil {
		return nil, err
	}
	for relPath, data := range filtered {
		dest := vfs.Join(writePath, relPath)
		if err := p.fs.Mkdir(vfs.Dir(dest), true); err != nil {
			return nil, err
		}
		if err := p.fs.WriteFile(dest, data); err != nil {
			return nil, err
		}
	}
	logStage(StageWritten)

	return &InstalledPackage{Name: entry.Name, Version: entry.Version, Path: path}, nil
}

// Uninstall implements §4.8: remove packages from the manifest, delete
// their node_modules directories, then rerun Install with NoSave to
// regenerate the lockfile.
func (p *PM) Uninstall(ctx context.Context, packages []string, opts InstallOptions) (*InstallResult, error) {
	m, err := p.readManifest()
	if err != nil {
		return nil, err
	}

	for _, name := range packages {
		m.RemoveDependency(name)
		pkgPath := vfs.Join(p.nodeModulesPath(), name)
		if p.fs.Exists(pkgPath) {
			if err := p.fs.Rmdir(pkgPath, true); err != nil {
				return nil, err
			}
		}
	}

	if err := p.writeManifest(m); err != nil {
		return nil, err
	}

	noSaveOpts := opts
	noSaveOpts.NoSave = true
	return p.Install(ctx, nil, noSaveOpts)
}

// List implements §4.8: walk node_modules with godirwalk (teacher uses the
// same library for workspace discovery) and read each package.json.
// Scoped packages are enumerated one level deeper.
func (p *PM) List(ctx context.Context) ([]ListedPackage, error) {
	native, ok := p.fs.(interface{ Root() string })
	if !ok {
		return p.listViaFS()
	}
	return p.listViaGodirwalk(native.Root())
}

func (p *PM) listViaGodirwalk(nativeRoot string) ([]ListedPackage, error) {
	nodeModulesRoot := nativeRoot + "/node_modules"
	var out []ListedPackage
	err := godirwalk.Walk(nodeModulesRoot, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(osPathname, nodeModulesRoot), "/")
			if rel == "" {
				return nil
			}
			segments := strings.Split(rel, "/")
			isScopeDir := strings.HasPrefix(segments[0], "@") && len(segments) == 1
			if isScopeDir {
				return nil
			}
			if strings.HasPrefix(rel, ".") {
				return godirwalk.SkipThis
			}
			pkgJSONPath := osPathname + "/package.json"
			data, err := os.ReadFile(pkgJSONPath)
			if err != nil {
				return nil
			}
			mf, err := manifest.Parse(data)
			if err != nil {
				return nil
			}
			out = append(out, ListedPackage{Name: mf.Name, Version: mf.Version, Path: "node_modules/" + rel})
			if len(segments) == 1 && !strings.HasPrefix(segments[0], "@") {
				return godirwalk.SkipThis
			}
			if len(segments) == 2 {
				return godirwalk.SkipThis
			}
			return nil
		},
		Unsorted: false,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// listViaFS is the vfs.FS-generic fallback for backends (vfs.Memory, or a
// future OPFS bridge) that don't expose a native directory godirwalk can
// walk directly.
func (p *PM) listViaFS() ([]ListedPackage, error) {
	var out []ListedPackage
	root := p.nodeModulesPath()
	if !p.fs.Exists(root) {
		return out, nil
	}
	names, err := p.fs.Readdir(root)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if strings.HasPrefix(name, "@") {
			scopePath := vfs.Join(root, name)
			scoped, err := p.fs.Readdir(scopePath)
			if err != nil {
				continue
			}
			for _, sub := range scoped {
				out = append(out, p.readOneListing(vfs.Join(scopePath, sub), name+"/"+sub)...)
			}
			continue
		}
		out = append(out, p.readOneListing(vfs.Join(root, name), name)...)
	}
	return out, nil
}

func (p *PM) readOneListing(pkgDir, relName string) []ListedPackage {
	data, err := p.fs.ReadFile(vfs.Join(pkgDir, "package.json"))
	if err != nil {
		return nil
	}
	mf, err := manifest.Parse(data)
	if err != nil {
		return nil
	}
	return []ListedPackage{{Name: mf.Name, Version: mf.Version, Path: "node_modules/" + relName}}
}

// Run implements §4.8's recording-only contract: the PM does not provide a
// shell, so this only validates the script exists and reports it as
// requested via SCRIPT_ERROR when absent.
func (p *PM) Run(ctx context.Context, scriptName string) error {
	m, err := p.readManifest()
	if err != nil {
		return err
	}
	if _, ok := m.Scripts[scriptName]; !ok {
		return pmerr.New(pmerr.CodeScriptError, fmt.Sprintf("no such script: %s", scriptName))
	}
	p.logger.Info("script requested (execution out of scope)", "script", scriptName)
	return nil
}
