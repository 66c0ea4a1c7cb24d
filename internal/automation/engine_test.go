package automation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestEngine(t *testing.T) (*Engine, *Store, *TriggerSet) {
	t.Helper()
	store := NewStore()
	triggers := NewTriggerSet(nil)
	e := NewEngine(store, triggers, nil)
	t.Cleanup(func() { e.Close() })
	return e, store, triggers
}

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
}

func TestDoStringSetAndGetState(t *testing.T) {
	e, store, _ := newTestEngine(t)

	if err := e.DoString(`setState("name", "sysop")`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	v, ok := store.GetState("name")
	if !ok || v != "sysop" {
		t.Errorf("GetState = (%v, %v), want (sysop, true)", v, ok)
	}

	if err := e.DoString(`setState("echo", getState("name"))`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	v, _ = store.GetState("echo")
	if v != "sysop" {
		t.Errorf("round-tripped state = %v, want sysop", v)
	}
}

func TestDoStringGetUnsetStateIsNil(t *testing.T) {
	e, store, _ := newTestEngine(t)

	if err := e.DoString(`setState("isnil", getState("missing") == nil)`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	v, _ := store.GetState("isnil")
	if v != true {
		t.Errorf("getState(missing) in Lua = %v, want nil", v)
	}
}

func TestSendQueuesAutoResponse(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.DoString(`send("look")`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	text, ok := e.PollAutoResponse()
	if !ok || text != "look" {
		t.Errorf("PollAutoResponse = (%q, %v), want (look, true)", text, ok)
	}
	if _, ok := e.PollAutoResponse(); ok {
		t.Error("queue should be empty after poll")
	}
}

func TestLoadScriptsAndRun(t *testing.T) {
	e, store, _ := newTestEngine(t)

	dir := t.TempDir()
	writeScript(t, dir, "greet.lua", `setState("greeted", match[1])`)
	writeScript(t, dir, "notes.txt", `not a script`)

	n, err := e.LoadScripts(dir)
	if err != nil {
		t.Fatalf("LoadScripts: %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d scripts, want 1", n)
	}
	if e.ScriptCount() != 1 {
		t.Errorf("ScriptCount() = %d, want 1", e.ScriptCount())
	}

	if err := e.RunScript("greet.lua", []string{"visitor"}); err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	v, _ := store.GetState("greeted")
	if v != "visitor" {
		t.Errorf("match[1] = %v, want visitor", v)
	}
}

func TestLoadScriptsMissingDir(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.LoadScripts(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("LoadScripts on missing dir returned nil error")
	}
}

func TestRunScriptNotFound(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.RunScript("ghost.lua", nil); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("RunScript = %v, want ErrScriptNotFound", err)
	}
}

func TestRunScriptLuaErrorSurfaces(t *testing.T) {
	e, _, _ := newTestEngine(t)

	dir := t.TempDir()
	writeScript(t, dir, "bad.lua", `error("boom")`)
	if _, err := e.LoadScripts(dir); err != nil {
		t.Fatalf("LoadScripts: %v", err)
	}

	if err := e.RunScript("bad.lua", nil); err == nil {
		t.Error("RunScript of failing script returned nil error")
	}
}

func TestProcessTextRunsMatchingScripts(t *testing.T) {
	e, store, triggers := newTestEngine(t)

	dir := t.TempDir()
	writeScript(t, dir, "health.lua", `
setState("hp", tonumber(match[1]))
if tonumber(match[1]) < 20 then
  send("drink potion")
end
`)
	if _, err := e.LoadScripts(dir); err != nil {
		t.Fatalf("LoadScripts: %v", err)
	}

	patterns := filepath.Join(t.TempDir(), "patterns.txt")
	if err := os.WriteFile(patterns, []byte(`HP: (\d+) | health.lua | low health`), 0o644); err != nil {
		t.Fatalf("writing patterns: %v", err)
	}
	if _, err := triggers.LoadFile(patterns); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	e.ProcessText("You swing and miss. HP: 15 of 100.")

	v, _ := store.GetState("hp")
	if v != 15.0 {
		t.Errorf("hp state = %v, want 15", v)
	}
	text, ok := e.PollAutoResponse()
	if !ok || text != "drink potion" {
		t.Errorf("PollAutoResponse = (%q, %v), want (drink potion, true)", text, ok)
	}
}

func TestProcessTextIsolatesScriptFailures(t *testing.T) {
	e, store, triggers := newTestEngine(t)

	dir := t.TempDir()
	writeScript(t, dir, "bad.lua", `error("kaboom")`)
	writeScript(t, dir, "good.lua", `setState("ran", true)`)
	if _, err := e.LoadScripts(dir); err != nil {
		t.Fatalf("LoadScripts: %v", err)
	}

	patterns := filepath.Join(t.TempDir(), "patterns.txt")
	content := "boom | bad.lua\nboom | good.lua\n"
	if err := os.WriteFile(patterns, []byte(content), 0o644); err != nil {
		t.Fatalf("writing patterns: %v", err)
	}
	if _, err := triggers.LoadFile(patterns); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	// Must not panic, and the later script still runs.
	e.ProcessText("boom")

	if v, _ := store.GetState("ran"); v != true {
		t.Error("script after a failing one did not run")
	}
}

func TestProcessTextNoTriggersIsCheap(t *testing.T) {
	e, _, _ := newTestEngine(t)
	// No triggers loaded: must return without touching Lua.
	e.ProcessText("anything at all")
}

func TestUnsafeLibrariesNotOpened(t *testing.T) {
	e, _, _ := newTestEngine(t)

	for _, lib := range []string{"io", "os", "debug", "package"} {
		err := e.DoString(`if ` + lib + ` ~= nil then error("open") end`)
		if err != nil {
			t.Errorf("library %s is exposed to scripts: %v", lib, err)
		}
	}
}

func TestEngineClosed(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := e.DoString(`x = 1`); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("DoString after Close = %v, want ErrEngineClosed", err)
	}
	if err := e.RunScript("x.lua", nil); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("RunScript after Close = %v, want ErrEngineClosed", err)
	}
}
