package popup

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMutator records the order mutation steps are applied in.
type recordingMutator struct {
	calls     []string
	reloadErr error
}

func (r *recordingMutator) ReplaceWith(selector, _ string) int {
	r.calls = append(r.calls, "replace "+selector)
	return 1
}

func (r *recordingMutator) Append(selector, _ string) int {
	r.calls = append(r.calls, "append "+selector)
	return 1
}

func (r *recordingMutator) SetContent(selector, _ string) int {
	r.calls = append(r.calls, "content "+selector)
	return 1
}

func (r *recordingMutator) InjectScript(string) {
	r.calls = append(r.calls, "script")
}

func (r *recordingMutator) Reload() error {
	r.calls = append(r.calls, "reload")
	return r.reloadErr
}

func (r *recordingMutator) Navigate(url string) {
	r.calls = append(r.calls, "navigate "+url)
}

func TestMutationApply_Order(t *testing.T) {
	m := &Mutation{
		Content:  []Fragment{{What: ".c1"}, {What: ".c2"}},
		Append:   []Fragment{{What: ".a1"}},
		Replaces: []Fragment{{What: ".r1"}, {What: ".r2"}},
		Script:   "<script>init()</script>",
		Redirect: "/next",
	}
	rec := &recordingMutator{}

	terminal, err := m.Apply(rec)
	require.NoError(t, err)
	assert.True(t, terminal)
	assert.Equal(t, []string{
		"replace .r1", "replace .r2",
		"append .a1",
		"content .c1", "content .c2",
		"script",
		"navigate /next",
	}, rec.calls)
}

func TestMutationApply_Terminal(t *testing.T) {
	tests := []struct {
		name     string
		mutation *Mutation
		terminal bool
		calls    []string
	}{
		{name: "nil", mutation: nil, terminal: false},
		{name: "empty", mutation: &Mutation{}, terminal: false},
		{name: "reload wins over redirect", mutation: &Mutation{Reload: true, Redirect: "/x"}, terminal: true, calls: []string{"reload"}},
		{name: "redirect", mutation: &Mutation{Redirect: "/x"}, terminal: true, calls: []string{"navigate /x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingMutator{}
			terminal, err := tt.mutation.Apply(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.terminal, terminal)
			assert.Equal(t, tt.calls, rec.calls)
		})
	}
}

func TestMutationApply_ReloadError(t *testing.T) {
	rec := &recordingMutator{reloadErr: errors.New("boom")}
	terminal, err := (&Mutation{Reload: true}).Apply(rec)
	assert.True(t, terminal)
	assert.EqualError(t, err, "boom")
}

const remotePage = `<html><body>
<a id="t" data-popup-target="remote" data-popup-remote="https://example.test/popup">r</a>
<div data-popup-id="remote">loading</div>
</body></html>`

func remoteMutation() *Mutation {
	return &Mutation{
		Replaces: []Fragment{{
			What: `[data-popup-id="remote"]`,
			Data: `<div data-popup-id="remote"><span class="popup__close">x</span><h2 class="title"></h2><div class="body"></div></div>`,
		}},
		Append:  []Fragment{{What: `[data-popup-id="remote"] .body`, Data: `<p class="added">added</p>`}},
		Content: []Fragment{{What: ".title", Data: "Hello"}},
	}
}

func TestRemote_SuccessAppliesThenOpens(t *testing.T) {
	doc := newTestDoc(t, remotePage)
	ft := &fakeTransport{mutation: remoteMutation()}
	reg := NewRegistry(doc, WithTransport(ft))

	var hooks hookCounts
	var completes int
	opts := hooks.options()
	opts.BeforeOpen = func(p *Popup) {
		hooks.beforeOpen++
		// Content is in place before the popup is shown
		assert.Len(t, doc.FindBySelector(nil, ".added"), 1)
	}
	opts.Remote = &Remote{OnComplete: func() { completes++ }}
	p := newTestPopup(t, reg, "t", opts)

	doc.Click(doc.FindByID("t"))

	require.Len(t, ft.sent, 1)
	assert.Equal(t, "https://example.test/popup", ft.sent[0].URL)
	assert.Equal(t, Open, p.State())
	assert.Equal(t, 1, hooks.beforeOpen)
	assert.Equal(t, 1, completes)
	assert.Equal(t, 0, reg.Loader().Pending())

	// The overlay was replaced and re-resolved
	require.NotNil(t, p.Overlay())
	assert.True(t, doc.HasClass(p.Overlay(), DefaultOpenedClass))
	assert.Equal(t, "Hello", doc.Text(doc.FindBySelector(p.Overlay(), ".title")[0]))

	// Listeners follow the new overlay
	doc.Click(doc.FindBySelector(p.Overlay(), ".popup__close")[0])
	assert.Equal(t, Closed, p.State())

	ft.mutation = &Mutation{}
	doc.Click(doc.FindByID("t"))
	require.Equal(t, Open, p.State())
	doc.Click(p.Overlay())
	assert.Equal(t, Closed, p.State())
}

func TestRemote_FailureStaysClosed(t *testing.T) {
	doc := newTestDoc(t, remotePage)
	ft := &fakeTransport{err: &RemoteError{URL: "https://example.test/popup", Status: 500}}
	reg := NewRegistry(doc, WithTransport(ft))

	var hooks hookCounts
	var gotErr error
	var completes int
	opts := hooks.options()
	opts.Remote = &Remote{
		OnError:    func(err error) { gotErr = err },
		OnComplete: func() { completes++ },
	}
	p := newTestPopup(t, reg, "t", opts)

	doc.SetScrollOffset(10)
	doc.Click(doc.FindByID("t"))

	assert.Equal(t, Closed, p.State())
	assert.Equal(t, 0, hooks.beforeOpen)
	assert.Equal(t, 1, completes)
	var remoteErr *RemoteError
	require.ErrorAs(t, gotErr, &remoteErr)
	assert.Equal(t, 500, remoteErr.Status)

	assert.False(t, doc.HasClass(doc.Body(), DefaultOpenedBodyClass))
	assert.Equal(t, 10, doc.ScrollOffset())
	assert.Equal(t, 0, reg.Loader().Pending())
}

func TestRemote_FailureKeepsOtherPopupOpen(t *testing.T) {
	doc := newTestDoc(t, remotePage+`<a id="local" data-popup-target="local">l</a><div data-popup-id="local"></div>`)
	ft := &fakeTransport{err: errors.New("offline")}
	reg := NewRegistry(doc, WithTransport(ft))

	local := newTestPopup(t, reg, "local", Options{})
	remote := newTestPopup(t, reg, "t", Options{})

	local.Open(nil)
	remote.Request(context.Background())

	assert.Equal(t, Open, local.State())
	assert.Equal(t, Closed, remote.State())
	assert.Same(t, local, reg.OpenPopup())
}

func TestRemote_BeforeSendCancels(t *testing.T) {
	doc := newTestDoc(t, remotePage)
	ft := &fakeTransport{mutation: &Mutation{}}
	reg := NewRegistry(doc, WithTransport(ft))

	var completes int
	p := newTestPopup(t, reg, "t", Options{Remote: &Remote{
		OnBeforeSend: func(*Request) bool { return false },
		OnComplete:   func() { completes++ },
	}})

	doc.Click(doc.FindByID("t"))

	assert.Empty(t, ft.sent)
	assert.Equal(t, Closed, p.State())
	assert.Equal(t, 0, completes)
	assert.Equal(t, 0, reg.Loader().Pending())
}

func TestRemote_BeforeSendAnnotates(t *testing.T) {
	doc := newTestDoc(t, remotePage)
	ft := &fakeTransport{mutation: &Mutation{}}
	reg := NewRegistry(doc, WithTransport(ft))

	newTestPopup(t, reg, "t", Options{Remote: &Remote{
		Query: url.Values{"lang": {"en"}},
		OnBeforeSend: func(r *Request) bool {
			r.Header.Set("X-Popup", "remote")
			return true
		},
	}})

	doc.Click(doc.FindByID("t"))

	require.Len(t, ft.sent, 1)
	assert.Equal(t, "remote", ft.sent[0].Header.Get("X-Popup"))
	assert.Equal(t, "en", ft.sent[0].Query.Get("lang"))
	// The trigger attribute only fills in a missing URL
	assert.Equal(t, "https://example.test/popup", ft.sent[0].URL)
}

func TestRemote_PendingUntilComplete(t *testing.T) {
	doc := newTestDoc(t, remotePage)
	ft := &fakeTransport{mutation: &Mutation{}, hold: true}
	reg := NewRegistry(doc, WithTransport(ft))
	p := newTestPopup(t, reg, "t", Options{})

	doc.Click(doc.FindByID("t"))
	assert.Equal(t, 1, reg.Loader().Pending())
	assert.Equal(t, Closed, p.State())

	ft.complete(ft.sent[0])
	assert.Equal(t, 0, reg.Loader().Pending())
	assert.Equal(t, Open, p.State())
}

func TestRemote_ReloadIsTerminal(t *testing.T) {
	doc := newTestDoc(t, remotePage)
	ft := &fakeTransport{mutation: &Mutation{Reload: true}}
	reg := NewRegistry(doc, WithTransport(ft))
	var hooks hookCounts
	p := newTestPopup(t, reg, "t", hooks.options())

	doc.Click(doc.FindByID("t"))

	assert.Equal(t, 1, doc.Reloads())
	assert.Equal(t, Closed, p.State())
	assert.Equal(t, 0, hooks.beforeOpen)
	assert.Nil(t, reg.OpenPopup())
}

func TestRemote_RedirectIsTerminal(t *testing.T) {
	doc := newTestDoc(t, remotePage)
	ft := &fakeTransport{mutation: &Mutation{
		Content:  []Fragment{{What: `[data-popup-id="remote"]`, Data: "bye"}},
		Redirect: "/login",
	}}
	reg := NewRegistry(doc, WithTransport(ft))
	p := newTestPopup(t, reg, "t", Options{})

	doc.Click(doc.FindByID("t"))

	assert.Equal(t, "/login", doc.Location())
	assert.Equal(t, "bye", doc.Text(p.Overlay()))
	assert.Equal(t, Closed, p.State())
	assert.False(t, doc.HasClass(doc.Body(), DefaultOpenedBodyClass))
}

func TestRemote_TerminalDropsInheritedOffset(t *testing.T) {
	doc := newTestDoc(t, testPage)
	reg := NewRegistry(doc, WithTransport(&fakeTransport{}))
	first := newTestPopup(t, reg, "t1", Options{})
	second := newTestPopup(t, reg, "t2", Options{})

	doc.SetScrollOffset(8)
	first.Open(nil)
	second.Open(&Mutation{Redirect: "/elsewhere"})
	assert.Equal(t, Closed, second.State())

	doc.SetScrollOffset(3)
	second.Open(nil)
	offset, ok := second.SavedScrollOffset()
	require.True(t, ok)
	assert.Equal(t, 3, offset)
}

func TestRemote_ScriptInjected(t *testing.T) {
	doc := newTestDoc(t, remotePage)
	ft := &fakeTransport{mutation: &Mutation{Script: "<script>track('open')</script>"}}
	reg := NewRegistry(doc, WithTransport(ft))
	p := newTestPopup(t, reg, "t", Options{})

	doc.Click(doc.FindByID("t"))

	assert.Equal(t, Open, p.State())
	assert.Equal(t, []string{"<script>track('open')</script>"}, doc.Scripts())
}
