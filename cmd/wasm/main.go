//go:build js && wasm

// Command wasm is the browser entry point: a syscall/js bridge exposing
// Install/Uninstall/List/Run on internal/pm.PM to JavaScript, the
// WebAssembly-side analog of the teacher's cmd/turbo/main.go, which bridges
// the same kind of host/native boundary through its own FFI surface instead.
// There is one PM instance per page, backed by vfs.Memory (or an
// OPFS-backed vfs.FS, once one exists) since a browser tab has no concept of
// a second concurrent process touching the same project directory.
package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/hashicorp/go-hclog"

	"webpm/internal/pkgcache"
	"webpm/internal/pm"
	"webpm/internal/registry"
	"webpm/internal/vfs"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{Name: "webpm-wasm", Level: hclog.Warn})
	fs := vfs.NewMemory()
	cache := pkgcache.New(pkgcache.Config{Logger: logger})
	client := registry.NewClient(registry.Options{Logger: logger})
	instance := pm.New(fs, "/", client, cache, logger)

	global := js.Global()
	webpm := js.ValueOf(map[string]interface{}{})
	webpm.Set("install", installFunc(instance))
	webpm.Set("uninstall", uninstallFunc(instance))
	webpm.Set("list", listFunc(instance))
	webpm.Set("run", runFunc(instance))
	global.Set("webpm", webpm)

	select {}
}

// jsPromise wraps a func that returns (interface{}, error) as a
// JavaScript Promise, running the work on its own goroutine so the event
// loop is never blocked on network or resolver work.
func jsPromise(work func() (interface{}, error)) js.Value {
	handler := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			result, err := work()
			if err != nil {
				reject.Invoke(js.ValueOf(err.Error()))
				return
			}
			encoded, err := json.Marshal(result)
			if err != nil {
				reject.Invoke(js.ValueOf(err.Error()))
				return
			}
			parsed := js.Global().Get("JSON").Call("parse", string(encoded))
			resolve.Invoke(parsed)
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

func stringSlice(arg js.Value) []string {
	if arg.IsUndefined() || arg.IsNull() {
		return nil
	}
	out := make([]string, arg.Length())
	for i := range out {
		out[i] = arg.Index(i).String()
	}
	return out
}

func installFunc(instance *pm.PM) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		var packages []string
		var opts pm.InstallOptions
		if len(args) > 0 {
			packages = stringSlice(args[0])
		}
		if len(args) > 1 {
			opts = decodeInstallOptions(args[1])
		}
		return jsPromise(func() (interface{}, error) {
			return instance.Install(context.Background(), packages, opts)
		})
	})
}

func uninstallFunc(instance *pm.PM) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		var packages []string
		if len(args) > 0 {
			packages = stringSlice(args[0])
		}
		return jsPromise(func() (interface{}, error) {
			return instance.Uninstall(context.Background(), packages, pm.InstallOptions{})
		})
	})
}

func listFunc(instance *pm.PM) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		return jsPromise(func() (interface{}, error) {
			return instance.List(context.Background())
		})
	})
}

func runFunc(instance *pm.PM) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		script := ""
		if len(args) > 0 {
			script = args[0].String()
		}
		return jsPromise(func() (interface{}, error) {
			return nil, instance.Run(context.Background(), script)
		})
	})
}

func decodeInstallOptions(v js.Value) pm.InstallOptions {
	get := func(key string) bool {
		field := v.Get(key)
		return !field.IsUndefined() && !field.IsNull() && field.Bool()
	}
	return pm.InstallOptions{
		SaveDev:    get("saveDev"),
		NoSave:     get("noSave"),
		Production: get("production"),
		Force:      get("force"),
		StrictSRI:  get("strictSRI"),
	}
}
