//go:build js && wasm

package main

import (
	"encoding/json"
	"errors"
	"syscall/js"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
	"github.com/sunstudio/sunstudio/backend-go/internal/engine"
)

var eng *engine.Engine

var errMissingArgument = errors.New("missing argument")

func main() {
	eng = engine.New(engine.Options{})

	// Create the engine API object
	canvasEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	canvasEngine.Set("loadWorkspace", js.FuncOf(loadWorkspace))
	canvasEngine.Set("loadSample", js.FuncOf(loadSample))
	canvasEngine.Set("setViewportSize", js.FuncOf(setViewportSize))
	canvasEngine.Set("pointerDown", js.FuncOf(pointer(eng.PointerDown)))
	canvasEngine.Set("pointerMove", js.FuncOf(pointer(eng.PointerMove)))
	canvasEngine.Set("pointerUp", js.FuncOf(pointer(eng.PointerUp)))
	canvasEngine.Set("wheel", js.FuncOf(wheel))
	canvasEngine.Set("keyDown", js.FuncOf(keyDown))
	canvasEngine.Set("addNode", js.FuncOf(addNode))
	canvasEngine.Set("updateNode", js.FuncOf(updateNode))
	canvasEngine.Set("connect", js.FuncOf(connect))
	canvasEngine.Set("chooseMenuType", js.FuncOf(chooseMenuType))
	canvasEngine.Set("setSelection", js.FuncOf(setSelection))
	canvasEngine.Set("createGroup", js.FuncOf(createGroup))
	canvasEngine.Set("arrangeGroup", js.FuncOf(arrangeGroup))
	canvasEngine.Set("saveWorkflow", js.FuncOf(saveWorkflow))
	canvasEngine.Set("instantiateWorkflow", js.FuncOf(instantiateWorkflow))
	canvasEngine.Set("dropAssets", js.FuncOf(dropAssets))
	canvasEngine.Set("undo", js.FuncOf(func(js.Value, []js.Value) interface{} { return js.ValueOf(eng.Undo()) }))
	canvasEngine.Set("redo", js.FuncOf(func(js.Value, []js.Value) interface{} { return js.ValueOf(eng.Redo()) }))
	canvasEngine.Set("fitView", js.FuncOf(func(js.Value, []js.Value) interface{} { eng.FitView(); return nil }))
	canvasEngine.Set("onChange", js.FuncOf(onChange))

	// --- Queries (frontend ← engine) ---
	canvasEngine.Set("getState", js.FuncOf(func(js.Value, []js.Value) interface{} { return js.ValueOf(eng.StateJSON()) }))
	canvasEngine.Set("getWorkspace", js.FuncOf(getWorkspace))
	canvasEngine.Set("render", js.FuncOf(func(js.Value, []js.Value) interface{} { return js.ValueOf(eng.DrawCommandsJSON()) }))
	canvasEngine.Set("hitTest", js.FuncOf(hitTest))

	// Register on global scope
	js.Global().Set("canvasEngine", canvasEngine)

	// Signal that WASM is ready
	js.Global().Set("canvasWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(err error) interface{} {
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func created(id string, err error) interface{} {
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "id": id})
}

func decodeArg(args []js.Value, i int, v any) error {
	if len(args) <= i {
		return errMissingArgument
	}
	return json.Unmarshal([]byte(args[i].String()), v)
}

func stringsArg(v js.Value) []string {
	if v.Type() != js.TypeObject {
		return nil
	}
	out := make([]string, v.Length())
	for i := range out {
		out[i] = v.Index(i).String()
	}
	return out
}

// --- Command Handlers ---

func loadWorkspace(this js.Value, args []js.Value) interface{} {
	var ws document.Workspace
	if err := decodeArg(args, 0, &ws); err != nil {
		return result(err)
	}
	eng.Load(ws)
	return result(nil)
}

func loadSample(this js.Value, args []js.Value) interface{} {
	eng.LoadSample()
	return result(nil)
}

func setViewportSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.SetViewportSize(args[0].Float(), args[1].Float())
	return nil
}

// pointer adapts a pointer handler taking a JSON-encoded event.
func pointer(fn func(engine.PointerEvent) bool) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		var ev engine.PointerEvent
		if err := decodeArg(args, 0, &ev); err != nil {
			return js.ValueOf(false)
		}
		return js.ValueOf(fn(ev))
	}
}

func wheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 5 {
		return nil
	}
	eng.Wheel(engine.Point{X: args[0].Float(), Y: args[1].Float()}, args[2].Float(), args[3].Float(), args[4].Bool())
	return nil
}

func keyDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.KeyDown(args[0].String(), args[1].Bool(), args[2].Bool()))
}

func addNode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return result(errMissingArgument)
	}
	var at *engine.Point
	if len(args) >= 3 {
		at = &engine.Point{X: args[1].Float(), Y: args[2].Float()}
	}
	return created(eng.AddNode(document.NodeType(args[0].String()), at, document.NodeData{}))
}

func updateNode(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return result(errMissingArgument)
	}
	var u engine.NodeUpdate
	if err := decodeArg(args, 1, &u); err != nil {
		return result(err)
	}
	return result(eng.UpdateNode(args[0].String(), u))
}

func connect(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return result(errMissingArgument)
	}
	_, err := eng.Connect(args[0].String(), engine.PortKind(args[1].String()), args[2].String(), engine.PortKind(args[3].String()))
	return result(err)
}

func chooseMenuType(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return result(errMissingArgument)
	}
	return created(eng.ChooseMenuType(document.NodeType(args[0].String())))
}

func setSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		eng.SetSelection(nil)
		return nil
	}
	eng.SetSelection(stringsArg(args[0]))
	return nil
}

func createGroup(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return result(errMissingArgument)
	}
	return created(eng.CreateGroup(args[0].String(), stringsArg(args[1])))
}

func arrangeGroup(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return result(errMissingArgument)
	}
	return result(eng.ArrangeGroup(args[0].String()))
}

func saveWorkflow(this js.Value, args []js.Value) interface{} {
	title := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		title = args[0].String()
	}
	return created(eng.SaveWorkflow(title), nil)
}

func instantiateWorkflow(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return result(errMissingArgument)
	}
	_, err := eng.InstantiateWorkflow(args[0].String(), engine.Point{X: args[1].Float(), Y: args[2].Float()})
	return result(err)
}

func dropAssets(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return result(errMissingArgument)
	}
	var assets []engine.DroppedAsset
	if err := decodeArg(args, 2, &assets); err != nil {
		return result(err)
	}
	eng.DropAssets(engine.Point{X: args[0].Float(), Y: args[1].Float()}, assets)
	return result(nil)
}

// onChange registers a JS callback run after every engine state change.
func onChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		eng.OnChange(nil)
		return nil
	}
	cb := args[0]
	eng.OnChange(func() { cb.Invoke() })
	return nil
}

// --- Query Handlers ---

func getWorkspace(this js.Value, args []js.Value) interface{} {
	data, err := json.Marshal(eng.Workspace())
	if err != nil {
		return js.ValueOf("{}")
	}
	return js.ValueOf(string(data))
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("{}")
	}
	data, err := json.Marshal(eng.HitTest(engine.Point{X: args[0].Float(), Y: args[1].Float()}))
	if err != nil {
		return js.ValueOf("{}")
	}
	return js.ValueOf(string(data))
}
