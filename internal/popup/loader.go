package popup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jmylchreest/popui/internal/dom"
)

// Fragment is a selector and the markup to apply to its matches.
type Fragment struct {
	What string `json:"what" yaml:"what"`
	Data string `json:"data" yaml:"data"`
}

// Mutation is the instruction set a remote endpoint returns for a popup.
// Every field is optional.
type Mutation struct {
	Replaces []Fragment `json:"replaces,omitempty" yaml:"replaces,omitempty"`
	Append   []Fragment `json:"append,omitempty" yaml:"append,omitempty"`
	Content  []Fragment `json:"content,omitempty" yaml:"content,omitempty"`
	Script   string     `json:"js,omitempty" yaml:"js,omitempty"`
	Reload   bool       `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Redirect string     `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

// Apply performs the mutation in its fixed order: replaces, appends,
// content, script, then reload or redirect. It reports whether the page
// was reloaded or navigated away, in which case nothing else should run.
func (m *Mutation) Apply(doc dom.Mutator) (terminal bool, err error) {
	if m == nil {
		return false, nil
	}
	for _, f := range m.Replaces {
		doc.ReplaceWith(f.What, f.Data)
	}
	for _, f := range m.Append {
		doc.Append(f.What, f.Data)
	}
	for _, f := range m.Content {
		doc.SetContent(f.What, f.Data)
	}
	if m.Script != "" {
		doc.InjectScript(m.Script)
	}

	switch {
	case m.Reload:
		return true, doc.Reload()
	case m.Redirect != "":
		doc.Navigate(m.Redirect)
		return true, nil
	}
	return false, nil
}

// Request is a single remote content request handed to a Transport.
type Request struct {
	URL     string
	Method  string
	Query   url.Values
	Header  http.Header
	Timeout time.Duration

	OnBeforeSend func(*Request) bool
	OnSuccess    func(*Mutation)
	OnError      func(error)
	OnComplete   func()
}

// Transport sends a request. It must call OnBeforeSend synchronously and
// stop if it returns false; otherwise exactly one of OnSuccess or OnError
// follows, then OnComplete. Those may run on any goroutine.
type Transport interface {
	Send(ctx context.Context, req *Request)
}

// ErrNoDispatcher is reported when an asynchronous transport would complete
// with no dispatcher to bring the outcome back to the UI goroutine.
var ErrNoDispatcher = errors.New("asynchronous transport needs a dispatcher")

// isAsync reports whether t says it completes on another goroutine.
func isAsync(t Transport) bool {
	a, ok := t.(interface{ Async() bool })
	return ok && a.Async()
}

// Loader fetches remote mutations and delivers the outcome through the
// registry dispatcher so popups are only touched on the UI goroutine.
type Loader struct {
	transport Transport
	dispatch  Dispatcher
	logger    *slog.Logger
	pending   int

	needsDispatcher bool
}

// NewLoader creates a loader.
func NewLoader(t Transport, dispatch Dispatcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatch == nil {
		dispatch = Inline
	}
	return &Loader{transport: t, dispatch: dispatch, logger: logger}
}

// Pending returns the number of requests whose completion has not been
// delivered yet.
func (l *Loader) Pending() int {
	return l.pending
}

// Fetch requests remote content and calls onSuccess with the mutation.
// remote.OnError receives failures; remote.OnComplete runs last either way.
// It reports false when the request was not sent: OnBeforeSend cancelled
// it, or the transport is asynchronous and no dispatcher was configured.
func (l *Loader) Fetch(ctx context.Context, remote *Remote, onSuccess func(*Mutation)) bool {
	if l.needsDispatcher {
		l.logger.Warn("remote popup content refused", "url", remote.URL, "error", ErrNoDispatcher)
		if remote.OnError != nil {
			remote.OnError(ErrNoDispatcher)
		}
		if remote.OnComplete != nil {
			remote.OnComplete()
		}
		return false
	}
	sent := true
	req := &Request{
		URL:     remote.URL,
		Method:  http.MethodGet,
		Query:   remote.Query,
		Header:  make(http.Header),
		Timeout: remote.Timeout,
		OnBeforeSend: func(r *Request) bool {
			if remote.OnBeforeSend != nil && !remote.OnBeforeSend(r) {
				sent = false
			}
			return sent
		},
		OnSuccess: func(m *Mutation) {
			l.dispatch(func() { onSuccess(m) })
		},
		OnError: func(err error) {
			l.dispatch(func() {
				l.logger.Warn("remote popup content failed", "url", remote.URL, "error", err)
				if remote.OnError != nil {
					remote.OnError(err)
				}
			})
		},
		OnComplete: func() {
			l.dispatch(func() {
				l.pending--
				if remote.OnComplete != nil {
					remote.OnComplete()
				}
			})
		},
	}

	l.pending++
	l.transport.Send(ctx, req)
	if !sent {
		l.pending--
		l.logger.Debug("remote popup request cancelled", "url", remote.URL)
	}
	return sent
}
