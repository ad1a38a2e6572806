package taskgraph

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// LuaTimeout bounds how long a task script may run.
const LuaTimeout = 2 * time.Second

// ParseLua runs a task script and collects the graph it declares.
// Scripts run in a sandbox with only the base, table, string and math
// libraries and may call:
//
//	title("release")
//	task{ id = "build", status = "done" }
//	task{ id = "test", deps = { "build" }, status = "running", progress = 0.5 }
//
// A script may also return a table shaped like the YAML document.
func ParseLua(name, src string) (*Graph, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibraries(L)

	ctx, cancel := context.WithTimeout(context.Background(), LuaTimeout)
	defer cancel()
	L.SetContext(ctx)

	var doc Document
	var convErr error

	L.SetGlobal("title", L.NewFunction(func(L *lua.LState) int {
		doc.Title = L.CheckString(1)
		return 0
	}))
	L.SetGlobal("task", L.NewFunction(func(L *lua.LState) int {
		td, err := taskFromTable(L.CheckTable(1))
		if err != nil && convErr == nil {
			convErr = err
		}
		doc.Tasks = append(doc.Tasks, td)
		return 0
	}))

	fn, err := L.LoadString(src)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	if ret, ok := L.Get(-1).(*lua.LTable); ok {
		if err := documentFromTable(ret, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	L.Pop(1)

	if convErr != nil {
		return nil, fmt.Errorf("%s: %w", name, convErr)
	}
	return doc.Graph()
}

// openSafeLibraries opens only Lua libraries without host access.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func documentFromTable(t *lua.LTable, doc *Document) error {
	if s, ok := t.RawGetString("title").(lua.LString); ok {
		doc.Title = string(s)
	}
	tasks, ok := t.RawGetString("tasks").(*lua.LTable)
	if !ok {
		return nil
	}

	var err error
	tasks.ForEach(func(_, v lua.LValue) {
		tt, ok := v.(*lua.LTable)
		if !ok {
			if err == nil {
				err = fmt.Errorf("tasks entries must be tables, got %s", v.Type())
			}
			return
		}
		td, terr := taskFromTable(tt)
		if terr != nil && err == nil {
			err = terr
		}
		doc.Tasks = append(doc.Tasks, td)
	})
	return err
}

func taskFromTable(t *lua.LTable) (TaskDocument, error) {
	var td TaskDocument
	var err error

	td.ID, err = tableString(t, "id", err)
	td.Name, err = tableString(t, "name", err)
	td.Status, err = tableString(t, "status", err)

	switch v := t.RawGetString("progress").(type) {
	case lua.LNumber:
		td.Progress = float64(v)
	case *lua.LNilType:
	default:
		if err == nil {
			err = fmt.Errorf("task field progress must be a number, got %s", v.Type())
		}
	}

	switch v := t.RawGetString("deps").(type) {
	case *lua.LTable:
		v.ForEach(func(_, dep lua.LValue) {
			if s, ok := dep.(lua.LString); ok {
				td.Deps = append(td.Deps, string(s))
			} else if err == nil {
				err = fmt.Errorf("task deps must be strings, got %s", dep.Type())
			}
		})
	case lua.LString:
		td.Deps = []string{string(v)}
	case *lua.LNilType:
	default:
		if err == nil {
			err = fmt.Errorf("task field deps must be a table, got %s", v.Type())
		}
	}

	return td, err
}

// tableString reads an optional string field, keeping the first error.
func tableString(t *lua.LTable, key string, prev error) (string, error) {
	switch v := t.RawGetString(key).(type) {
	case lua.LString:
		return string(v), prev
	case lua.LNumber:
		return v.String(), prev
	case *lua.LNilType:
		return "", prev
	default:
		if prev != nil {
			return "", prev
		}
		return "", fmt.Errorf("task field %s must be a string, got %s", key, v.Type())
	}
}
