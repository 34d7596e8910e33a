package loader

import (
	"runtime"
	"testing"
	"time"

	"github.com/IvanBrykalov/sectionloader/settings"
	"golang.org/x/net/html"
)

func TestInstances_SetGet(t *testing.T) {
	tbl := newInstances()
	el := &html.Node{Type: html.ElementNode, Data: "div"}

	if _, ok := tbl.get(el); ok {
		t.Fatal("unexpected instance")
	}
	tbl.set(el, Instance{Settings: settings.Settings{"a": 1.0}})
	tbl.set(el, Instance{Settings: settings.Settings{"a": 2.0}})

	inst, ok := tbl.get(el)
	if !ok || inst.Settings["a"] != 2.0 {
		t.Fatalf("get = %+v, %v", inst, ok)
	}
	if tbl.len() != 1 {
		t.Fatalf("len = %d", tbl.len())
	}
	runtime.KeepAlive(el)
}

func TestInstances_DroppedWhenNodeCollected(t *testing.T) {
	tbl := newInstances()
	func() {
		el := &html.Node{Type: html.ElementNode, Data: "div"}
		tbl.set(el, Instance{Settings: settings.Defaults()})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for tbl.len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("entry not dropped after collection")
		}
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
}
