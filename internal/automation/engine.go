package automation

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/jedcn/baud/internal/logging"
)

// Engine executes Lua trigger scripts against a shared store.
//
// gopher-lua's LState is not goroutine-safe, so the engine serializes
// all executions behind a mutex. ProcessText is called from the
// inbound flow; every script failure is caught and logged there and
// never reaches the session engine.
type Engine struct {
	mu       sync.Mutex
	L        *lua.LState
	store    *Store
	triggers *TriggerSet
	scripts  map[string]string
	log      *logging.Logger
	closed   bool
}

// NewEngine creates a Lua engine bound to the given store and trigger
// set.
func NewEngine(store *Store, triggers *TriggerSet, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NullLogger
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // opened selectively below
	})
	openSafeLibraries(L)

	e := &Engine{
		L:        L,
		store:    store,
		triggers: triggers,
		scripts:  make(map[string]string),
		log:      log.WithComponent("automation"),
	}
	e.registerAPI()
	return e
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Intentionally not opened: io, os, debug, package.
}

// registerAPI exposes the script API: setState, getState, send.
func (e *Engine) registerAPI() {
	e.L.SetGlobal("setState", e.L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		value := luaToGo(L.Get(2))
		e.store.SetState(key, value)
		return 0
	}))

	e.L.SetGlobal("getState", e.L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		value, ok := e.store.GetState(key)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(goToLua(value))
		return 1
	}))

	e.L.SetGlobal("send", e.L.NewFunction(func(L *lua.LState) int {
		e.store.QueueResponse(L.CheckString(1))
		return 0
	}))
}

// LoadScripts reads every *.lua file under dir into the engine.
// Individual unreadable files are skipped with a warning. Returns the
// number of scripts loaded.
func (e *Engine) LoadScripts(dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("scripts directory does not exist: %s", dir)
	}

	loaded := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".lua" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			e.log.Warn("could not load script %s: %v", filepath.Base(path), err)
			return nil
		}

		name := filepath.Base(path)
		e.mu.Lock()
		e.scripts[name] = string(content)
		e.mu.Unlock()
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("walking scripts directory: %w", err)
	}

	return loaded, nil
}

// LoadTriggers loads the pattern file into the engine's trigger set.
func (e *Engine) LoadTriggers(path string) (int, error) {
	return e.triggers.LoadFile(path)
}

// RunScript executes a loaded script with the given capture groups
// bound to the 1-indexed Lua table `match`.
func (e *Engine) RunScript(name string, captures []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	content, ok := e.scripts[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrScriptNotFound, name)
	}

	matchTable := e.L.NewTable()
	for i, capture := range captures {
		matchTable.RawSetInt(i+1, lua.LString(capture))
	}
	e.L.SetGlobal("match", matchTable)

	return e.doWithRecovery(name, func() error {
		fn, err := e.L.LoadString(content)
		if err != nil {
			return err
		}
		e.L.Push(fn)
		return e.L.PCall(0, lua.MultRet, nil)
	})
}

// DoString executes inline Lua code.
func (e *Engine) DoString(code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	return e.doWithRecovery("inline", func() error {
		return e.L.DoString(code)
	})
}

// doWithRecovery executes a function with panic recovery.
func (e *Engine) doWithRecovery(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic in %s: %v", name, r)
		}
	}()
	return fn()
}

// ProcessText checks inbound text against the trigger set and runs
// every matching script. Failures are logged and never propagate;
// the session must not be affected by a broken script.
func (e *Engine) ProcessText(text string) {
	if e.triggers == nil || e.triggers.Len() == 0 {
		return
	}

	for _, m := range e.triggers.MatchText(text) {
		if err := e.RunScript(m.Script, m.Captures); err != nil {
			e.log.Error("script %s failed: %v", m.Script, err)
		}
	}
}

// PollAutoResponse returns the next queued auto-response, if any.
// Non-blocking; called from the outbound flow.
func (e *Engine) PollAutoResponse() (string, bool) {
	return e.store.PollResponse()
}

// ScriptCount returns the number of loaded scripts.
func (e *Engine) ScriptCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.scripts)
}

// Close releases the Lua state. After Close, executions return
// ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.L.Close()
	e.closed = true
	return nil
}

// luaToGo converts a Lua value to its Go representation.
func luaToGo(v lua.LValue) any {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	default:
		return v.String()
	}
}

// goToLua converts a Go value to its Lua representation.
func goToLua(v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}
