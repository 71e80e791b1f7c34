package render_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dom"
	"github.com/pthm/summon/lib/render"
)

func TestLiveBuildsTree(t *testing.T) {
	container := dom.NewElement("div")
	live := render.NewLive(container, nil)
	c := compose.New(compose.Options{Backend: live})
	require.NoError(t, c.Compose(card))

	want := `<article class="card" style="color: red; padding: 4px"><h2>Tom &amp; Jerry</h2><p>ab</p><img src="/x.png" alt="&lt;x&gt;"/><input type="checkbox" checked=""/></article>`
	if diff := cmp.Diff(want, dom.InnerHTML(container)); diff != "" {
		t.Errorf("InnerHTML() mismatch (-want +got):\n%s", diff)
	}
	// article, h2, text, p, two texts, img, input
	assert.Equal(t, 8, live.Created())
	assert.Zero(t, live.Claimed())
}

func TestLivePositionalReuse(t *testing.T) {
	container := dom.NewElement("div")
	live := render.NewLive(container, nil)

	live.Begin()
	live.OpenNode(compose.NodeSpec{Tag: "p", Attrs: []compose.Attr{{Name: "class", Value: "a"}}})
	live.Text("one")
	live.CloseNode()
	live.OpenNode(compose.NodeSpec{Tag: "span"})
	live.CloseNode()
	live.End()
	p := container.FirstChild

	live.Begin()
	got := live.OpenNode(compose.NodeSpec{Tag: "p", Attrs: []compose.Attr{{Name: "title", Value: "t"}}})
	live.Text("two")
	live.CloseNode()
	live.End()

	assert.Same(t, p, got)
	assert.Equal(t, `<p title="t">two</p>`, dom.InnerHTML(container), "stale attribute and trailing span removed")
	assert.Equal(t, 2, live.Claimed())
}

func TestLiveMarkerMismatchCreates(t *testing.T) {
	container := dom.NewElement("div")
	live := render.NewLive(container, nil)

	live.Begin()
	live.OpenNode(compose.NodeSpec{Tag: "div", ComponentID: "w1"})
	live.CloseNode()
	live.End()
	old := container.FirstChild

	live.Begin()
	live.OpenNode(compose.NodeSpec{Tag: "div", ComponentID: "w2"})
	live.CloseNode()
	live.End()

	assert.NotSame(t, old, container.FirstChild)
	assert.Equal(t, `<div data-summon-id="w2"></div>`, dom.InnerHTML(container))
}

func TestLiveRollback(t *testing.T) {
	container := dom.NewElement("div")
	live := render.NewLive(container, nil)

	live.Begin()
	live.OpenNode(compose.NodeSpec{Tag: "ul"})
	cp := live.Checkpoint()
	live.OpenNode(compose.NodeSpec{Tag: "li"})
	live.Text("partial")
	live.Rollback(cp)
	live.OpenNode(compose.NodeSpec{Tag: "li"})
	live.Text("ok")
	live.CloseNode()
	live.CloseNode()
	live.End()

	assert.Equal(t, "<ul><li>ok</li></ul>", dom.InnerHTML(container))
}

func TestLiveRestartWithinRegion(t *testing.T) {
	container := dom.NewElement("ul")
	live := render.NewLive(container, nil)

	live.Begin()
	first := live.OpenNode(compose.NodeSpec{Tag: "li"})
	live.CloseNode()
	mid := live.OpenNode(compose.NodeSpec{Tag: "li", Attrs: []compose.Attr{{Name: "id", Value: "mid"}}})
	live.CloseNode()
	last := live.OpenNode(compose.NodeSpec{Tag: "li"})
	live.CloseNode()
	live.End()

	live.Restart(container, []compose.Handle{mid}, last)
	live.OpenNode(compose.NodeSpec{Tag: "li", Attrs: []compose.Attr{{Name: "id", Value: "mid"}}})
	live.CloseNode()
	live.OpenNode(compose.NodeSpec{Tag: "li", Attrs: []compose.Attr{{Name: "id", Value: "extra"}}})
	live.CloseNode()
	live.FinishRestart()

	assert.Equal(t, `<li></li><li id="mid"></li><li id="extra"></li><li></li>`, dom.InnerHTML(container))
	assert.Same(t, first, container.FirstChild)
	assert.Same(t, last, container.LastChild)

	live.Restart(container, []compose.Handle{mid, container.FirstChild.NextSibling.NextSibling}, last)
	live.FinishRestart()
	assert.Equal(t, `<li></li><li></li>`, dom.InnerHTML(container))
}

func TestApplyAttrs(t *testing.T) {
	n := dom.NewElement("a")
	dom.SetAttr(n, "hidden", "")
	render.ApplyAttrs(n, []compose.Attr{{Name: "href", Value: "/x"}}, nil)
	render.ApplyAttrs(n, []compose.Attr{{Name: "class", Value: "c"}}, []compose.Attr{{Name: "href", Value: "/x"}})

	assert.Equal(t, `<a hidden="" class="c"></a>`, dom.Render(n))
}
