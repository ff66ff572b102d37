package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM that holds the asset configuration
// scripts. Calls are serialized.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// Settings is what the scripts' configure() hands back after the catalog
// comes up.
type Settings struct {
	Preload         []string      // keys resolved right after bootstrap
	Unique          []string      // effect names spawned one-at-a-time by default
	DefaultLifetime time.Duration // for effects without their own lifetime
}

// NewEngine creates a Lua engine and loads every script in scriptsDir, then
// the optional "effects" subdirectory. A missing directory is not an error.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "effects")} {
		if err := e.loadDir(dir); err != nil {
			e.vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// NewEngineFromString loads a single chunk of Lua source.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Configure calls the Lua global configure(ctx). ctx.has(key) reports
// whether the catalog knows key; ctx.log(msg) writes to the engine log.
// Scripts without configure yield empty Settings.
func (e *Engine) Configure(has func(key string) bool) (Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("configure")
	if fn == lua.LNil {
		e.log.Debug("lua configure not defined, using defaults")
		return Settings{}, nil
	}

	ctx := e.vm.NewTable()
	ctx.RawSetString("has", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(has(L.CheckString(1))))
		return 1
	}))
	ctx.RawSetString("log", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, ctx); err != nil {
		return Settings{}, fmt.Errorf("lua configure: %w", err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	if result == lua.LNil {
		return Settings{}, nil
	}
	rt, ok := result.(*lua.LTable)
	if !ok {
		return Settings{}, fmt.Errorf("lua configure returned %s, want table", result.Type())
	}

	return Settings{
		Preload:         lStrings(rt, "preload"),
		Unique:          lStrings(rt, "unique"),
		DefaultLifetime: time.Duration(lInt(rt, "default_lifetime_ms")) * time.Millisecond,
	}, nil
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// lStrings reads an array-of-strings field; non-string items are skipped.
func lStrings(t *lua.LTable, key string) []string {
	arr, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	n := arr.Len()
	for i := 1; i <= n; i++ {
		if s, ok := arr.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
