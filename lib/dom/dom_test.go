package dom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

func TestParseAndLookup(t *testing.T) {
	doc, err := ParseString(`<div id="a" class="x"><span id="b">hi</span><p>there</p></div>`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	b := doc.ElementByID("b")
	if b == nil {
		t.Fatal("ElementByID(b) = nil")
	}
	if got := TextContent(b); got != "hi" {
		t.Errorf("TextContent() = %q, want %q", got, "hi")
	}

	a := doc.ElementByID("a")
	if got, _ := Attr(a, "class"); got != "x" {
		t.Errorf("Attr(class) = %q, want %q", got, "x")
	}
	if doc.Body() == nil {
		t.Error("Body() = nil")
	}
}

func TestAttrEditing(t *testing.T) {
	n := NewElement("div")
	SetAttr(n, "a", "1")
	SetAttr(n, "b", "2")
	SetAttr(n, "a", "3")
	RemoveAttr(n, "b")
	SetAttr(n, "c", "4")

	want := []html.Attribute{{Key: "a", Val: "3"}, {Key: "c", Val: "4"}}
	if diff := cmp.Diff(want, n.Attr); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
	if HasAttr(n, "b") {
		t.Error("HasAttr(b) = true after RemoveAttr")
	}
}

func TestRenderRoundTrip(t *testing.T) {
	const markup = `<div data-summon-id="w1"><button aria-expanded="false">x &amp; y</button></div>`
	doc, err := ParseString(markup)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if got := InnerHTML(doc.Body()); got != markup {
		t.Errorf("InnerHTML() = %q, want %q", got, markup)
	}
}

func TestDispatchBubbles(t *testing.T) {
	doc, _ := ParseString(`<div id="outer"><p id="mid"><span id="inner">x</span></p></div>`)
	outer := doc.ElementByID("outer")
	inner := doc.ElementByID("inner")

	var path []string
	doc.AddEventListener(outer, "click", func(ev *Event) {
		id, _ := Attr(ev.CurrentTarget, "id")
		path = append(path, id)
		ev.PreventDefault()
	})
	doc.AddEventListener(doc.ElementByID("mid"), "click", func(ev *Event) {
		id, _ := Attr(ev.CurrentTarget, "id")
		path = append(path, id)
	})

	ev := doc.Click(inner)
	if diff := cmp.Diff([]string{"mid", "outer"}, path); diff != "" {
		t.Errorf("bubble path mismatch (-want +got):\n%s", diff)
	}
	if !ev.DefaultPrevented() {
		t.Error("DefaultPrevented() = false, want true")
	}
	if ev.Target != inner {
		t.Error("Target changed during bubbling")
	}
}

func TestStopPropagation(t *testing.T) {
	doc, _ := ParseString(`<div id="outer"><span id="inner">x</span></div>`)
	outerCalled := false
	doc.AddEventListener(doc.ElementByID("outer"), "click", func(*Event) { outerCalled = true })
	doc.AddEventListener(doc.ElementByID("inner"), "click", func(ev *Event) { ev.StopPropagation() })

	doc.Click(doc.ElementByID("inner"))
	if outerCalled {
		t.Error("outer listener ran after StopPropagation")
	}
}

func TestData(t *testing.T) {
	doc := NewDocument()
	body := doc.Body()
	if _, ok := doc.Data(body, "k"); ok {
		t.Fatal("Data() found a value before SetData")
	}
	doc.SetData(body, "k", 7)
	if v, ok := doc.Data(body, "k"); !ok || v != 7 {
		t.Errorf("Data() = %v, %v; want 7, true", v, ok)
	}
}
