// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/fsnotify/fsnotify"
)

// targetSchema constrains the shape of a bulk target-list file: a CUE
// definition rather than a bare struct tag set, so a config file gets
// the same validation (defaults, enum checks, required fields) whether
// it's loaded by this library or inspected with the cue CLI directly.
const targetSchema = `
#Target: {
	name:              string
	address:           string
	port:              *161 | int
	version:           *"v2c" | "v1" | "v2c" | "v3"
	community?:        string
	userName?:         string
	authProtocol?:     *"none" | "md5" | "sha1"
	authPassword?:     string
	privProtocol?:     *"none" | "des" | "3des" | "aes128" | "aes192" | "aes256" | "aes192huawei" | "aes256huawei"
	privPassword?:     string
	securityLevel?:    *"noAuthNoPriv" | "authNoPriv" | "authPriv"
	contextName?:      string
	retryCount?:       *1 | int
	timeoutMs?:        *1500 | int
	maxRepetitions?:   *10 | int
	maxMsgSize?:       *1472 | int
	strictTimeWindow?: *false | bool
}

targets: [...#Target]
`

// cueTarget mirrors #Target's fields for decoding; TargetConfig itself
// isn't used directly since its Version/AuthProtocol/etc. fields are
// typed enums, not the strings a CUE file holds.
type cueTarget struct {
	Name             string `json:"name"`
	Address          string `json:"address"`
	Port             int    `json:"port"`
	Version          string `json:"version"`
	Community        string `json:"community"`
	UserName         string `json:"userName"`
	AuthProtocol     string `json:"authProtocol"`
	AuthPassword     string `json:"authPassword"`
	PrivProtocol     string `json:"privProtocol"`
	PrivPassword     string `json:"privPassword"`
	SecurityLevel    string `json:"securityLevel"`
	ContextName      string `json:"contextName"`
	RetryCount       int    `json:"retryCount"`
	TimeoutMS        int    `json:"timeoutMs"`
	MaxRepetitions   int    `json:"maxRepetitions"`
	MaxMsgSize       uint32 `json:"maxMsgSize"`
	StrictTimeWindow bool   `json:"strictTimeWindow"`
}

// LoadTargetsFromCUE reads a CUE file at path, validates it against
// targetSchema, and returns the declared targets keyed by name.
func LoadTargetsFromCUE(path string) (map[string]TargetConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snmpmgr: config: read %s: %w", path, err)
	}
	return parseTargetsCUE(content)
}

func parseTargetsCUE(content []byte) (map[string]TargetConfig, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(targetSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("snmpmgr: config: compile schema: %w", err)
	}

	doc := ctx.CompileBytes(content)
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("snmpmgr: config: compile %s: %w", "target file", err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("snmpmgr: config: validate: %w", err)
	}

	targetsVal := unified.LookupPath(cue.ParsePath("targets"))
	if !targetsVal.Exists() {
		return nil, fmt.Errorf("snmpmgr: config: no targets field")
	}

	var raw []cueTarget
	if err := targetsVal.Decode(&raw); err != nil {
		return nil, fmt.Errorf("snmpmgr: config: decode targets: %w", err)
	}

	out := make(map[string]TargetConfig, len(raw))
	for _, rt := range raw {
		tc, err := rt.toTargetConfig()
		if err != nil {
			return nil, fmt.Errorf("snmpmgr: config: target %q: %w", rt.Name, err)
		}
		out[rt.Name] = tc
	}
	return out, nil
}

func (rt cueTarget) toTargetConfig() (TargetConfig, error) {
	version, err := versionFromString(rt.Version)
	if err != nil {
		return TargetConfig{}, err
	}
	authProto, err := authProtocolFromString(rt.AuthProtocol)
	if err != nil {
		return TargetConfig{}, err
	}
	privProto, err := privProtocolFromString(rt.PrivProtocol)
	if err != nil {
		return TargetConfig{}, err
	}
	secLevel, err := securityLevelFromString(rt.SecurityLevel)
	if err != nil {
		return TargetConfig{}, err
	}

	return TargetConfig{
		Address:          rt.Address,
		Port:             rt.Port,
		Version:          version,
		Community:        rt.Community,
		UserName:         rt.UserName,
		AuthProtocol:     authProto,
		AuthPassword:     rt.AuthPassword,
		PrivProtocol:     privProto,
		PrivPassword:     rt.PrivPassword,
		SecurityLevel:    secLevel,
		ContextName:      rt.ContextName,
		RetryCount:       rt.RetryCount,
		TimeoutMS:        rt.TimeoutMS,
		MaxRepetitions:   rt.MaxRepetitions,
		MaxMsgSize:       rt.MaxMsgSize,
		StrictTimeWindow: rt.StrictTimeWindow,
	}, nil
}

func versionFromString(s string) (Version, error) {
	switch s {
	case "", "v2c":
		return Version2c, nil
	case "v1":
		return Version1, nil
	case "v3":
		return Version3, nil
	}
	return 0, fmt.Errorf("unknown version %q", s)
}

func authProtocolFromString(s string) (AuthProtocol, error) {
	switch s {
	case "", "none":
		return AuthNone, nil
	case "md5":
		return AuthMD5, nil
	case "sha1":
		return AuthSHA1, nil
	}
	return 0, fmt.Errorf("unknown authProtocol %q", s)
}

func privProtocolFromString(s string) (PrivProtocol, error) {
	switch s {
	case "", "none":
		return PrivNone, nil
	case "des":
		return PrivDES, nil
	case "3des":
		return Priv3DES, nil
	case "aes128":
		return PrivAES128, nil
	case "aes192":
		return PrivAES192, nil
	case "aes256":
		return PrivAES256, nil
	case "aes192huawei":
		return PrivAES192Huawei, nil
	case "aes256huawei":
		return PrivAES256Huawei, nil
	}
	return 0, fmt.Errorf("unknown privProtocol %q", s)
}

func securityLevelFromString(s string) (SecurityLevel, error) {
	switch s {
	case "", "noAuthNoPriv":
		return NoAuthNoPriv, nil
	case "authNoPriv":
		return AuthNoPriv, nil
	case "authPriv":
		return AuthPriv, nil
	}
	return 0, fmt.Errorf("unknown securityLevel %q", s)
}

// TargetsReloadHandler is called with the freshly parsed target set
// whenever the watched file changes.
type TargetsReloadHandler func(targets map[string]TargetConfig)

// ConfigWatcher hot-reloads a CUE target file, the way a daemon managing
// many targets would want to pick up address/credential edits without a
// restart.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	current  map[string]TargetConfig
	handlers []TargetsReloadHandler

	done chan struct{}
}

// WatchTargetsCUE loads path once and then watches it for writes,
// reparsing and notifying registered handlers on every change. Parse
// errors on a reload are swallowed (the previous valid config keeps
// serving) rather than tearing down the watch loop.
func WatchTargetsCUE(path string) (*ConfigWatcher, error) {
	targets, err := LoadTargetsFromCUE(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("snmpmgr: config: watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("snmpmgr: config: watch %s: %w", path, err)
	}

	cw := &ConfigWatcher{
		path:    path,
		watcher: watcher,
		current: targets,
		done:    make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *ConfigWatcher) run() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			targets, err := LoadTargetsFromCUE(cw.path)
			if err != nil {
				continue
			}
			cw.mu.Lock()
			cw.current = targets
			handlers := append([]TargetsReloadHandler(nil), cw.handlers...)
			cw.mu.Unlock()
			for _, h := range handlers {
				h(targets)
			}
		case _, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
		case <-cw.done:
			return
		}
	}
}

// OnReload registers a handler invoked after every successful reparse.
func (cw *ConfigWatcher) OnReload(h TargetsReloadHandler) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.handlers = append(cw.handlers, h)
}

// Targets returns the most recently loaded target set.
func (cw *ConfigWatcher) Targets() map[string]TargetConfig {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	out := make(map[string]TargetConfig, len(cw.current))
	for k, v := range cw.current {
		out[k] = v
	}
	return out
}

// Close stops watching and releases the underlying fsnotify resources.
func (cw *ConfigWatcher) Close() error {
	close(cw.done)
	return cw.watcher.Close()
}
