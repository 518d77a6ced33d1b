//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"syscall/js"

	"github.com/roomstage/studio/internal/asset"
	"github.com/roomstage/studio/internal/compositor"
	"github.com/roomstage/studio/internal/design"
	"github.com/roomstage/studio/internal/geometry"
	"github.com/roomstage/studio/internal/selection"
)

// In the browser there is no asset store; images arrive as data URLs or
// URLs the page can fetch.
var resolver = asset.NewResolver(nil, nil)

func main() {
	studio := js.Global().Get("Object").New()

	studio.Set("composite", js.FuncOf(composite))
	studio.Set("selectionNext", js.FuncOf(selectionNext))
	studio.Set("itemAt", js.FuncOf(itemAt))
	studio.Set("autoPlace", js.FuncOf(autoPlace))
	studio.Set("removeOverlapping", js.FuncOf(removeOverlapping))

	// Register on global scope
	js.Global().Set("roomStudio", studio)

	// Signal that WASM is ready
	js.Global().Set("roomStudioReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

// composite(requestJSON) returns a Promise resolving to a Uint8Array PNG.
func composite(this js.Value, args []js.Value) interface{} {
	promise := js.Global().Get("Promise")
	if len(args) < 1 {
		return promise.Call("reject", js.ValueOf("missing composite request JSON"))
	}

	var req compositor.Request
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return promise.Call("reject", js.ValueOf(err.Error()))
	}

	var executor js.Func
	executor = js.FuncOf(func(this js.Value, p []js.Value) interface{} {
		resolve, reject := p[0], p[1]
		go func() {
			defer executor.Release()

			png, err := compositor.Composite(context.Background(), resolver, req)
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			out := js.Global().Get("Uint8Array").New(len(png))
			js.CopyBytesToJS(out, png)
			resolve.Invoke(out)
		}()
		return nil
	})
	return promise.New(executor)
}

// selectionNext(stateJSON, eventJSON) returns the next state as JSON.
func selectionNext(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult(errMissingArgs)
	}

	var state selection.State
	if s := args[0].String(); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &state); err != nil {
			return errorResult(err)
		}
	}

	var ev selection.Event
	if err := json.Unmarshal([]byte(args[1].String()), &ev); err != nil {
		return errorResult(err)
	}

	out, _ := json.Marshal(selection.Next(state, ev))
	return js.ValueOf(string(out))
}

// itemAt(itemsJSON, x, y) returns the ID of the topmost item under the point.
func itemAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf("")
	}

	var d design.Design
	if err := json.Unmarshal([]byte(args[0].String()), &d.Items); err != nil {
		return js.ValueOf("")
	}

	it, ok := d.ItemAt(geometry.Point{X: args[1].Float(), Y: args[2].Float()})
	if !ok {
		return js.ValueOf("")
	}
	return js.ValueOf(it.ID)
}

// autoPlace(itemsJSON, seed) returns the re-laid-out items as JSON.
func autoPlace(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult(errMissingArgs)
	}

	var items []design.Item
	if err := json.Unmarshal([]byte(args[0].String()), &items); err != nil {
		return errorResult(err)
	}

	seed := int64(js.Global().Get("Date").Call("now").Float())
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		seed = int64(args[1].Float())
	}

	out, _ := json.Marshal(design.AutoPlace(items, rand.New(rand.NewSource(seed))))
	return js.ValueOf(string(out))
}

// removeOverlapping(itemsJSON, regionsJSON) returns {items, removed} as JSON.
func removeOverlapping(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult(errMissingArgs)
	}

	var d design.Design
	if err := json.Unmarshal([]byte(args[0].String()), &d.Items); err != nil {
		return errorResult(err)
	}
	var regions []geometry.Rect
	if err := json.Unmarshal([]byte(args[1].String()), &regions); err != nil {
		return errorResult(err)
	}

	removed := d.RemoveOverlapping(regions)
	ids := make([]string, 0, len(removed))
	for _, it := range removed {
		ids = append(ids, it.ID)
	}

	out, _ := json.Marshal(map[string]interface{}{"items": d.Items, "removed": ids})
	return js.ValueOf(string(out))
}
