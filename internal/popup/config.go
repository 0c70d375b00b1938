package popup

import (
	"errors"
	"log/slog"
	"maps"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultOpenedClass         = "opened"
	DefaultOpenedBodyClass     = "popup-opened"
	DefaultCloseButtonSelector = ".popup__close"
	DefaultEventNamespace      = "popup"
)

// Validation errors.
var (
	ErrNilRegistry      = errors.New("popup registry is required")
	ErrNoTrigger        = errors.New("popup trigger element is required")
	ErrEmptyTarget      = errors.New("popup target id cannot be empty")
	ErrEmptyOpenedClass = errors.New("opened class cannot be empty")
	ErrEmptyBodyClass   = errors.New("opened body class cannot be empty")
	ErrEmptyNamespace   = errors.New("event namespace cannot be empty")
	ErrEmptyCloseButton = errors.New("close button selector cannot be empty")
	ErrNegativeTimeout  = errors.New("remote timeout cannot be negative")
)

// Hook is a lifecycle callback receiving the popup it fired for.
type Hook func(*Popup)

// Remote describes how a popup fetches its content before opening.
type Remote struct {
	URL     string
	Query   url.Values
	Timeout time.Duration // 0 uses the transport default

	// OnBeforeSend runs synchronously before dispatch. It may annotate the
	// request; returning false cancels both the request and the open.
	OnBeforeSend func(*Request) bool
	OnError      func(error)
	// OnComplete runs after success or failure.
	OnComplete   func()
}

func (r *Remote) clone() *Remote {
	if r == nil {
		return nil
	}
	c := *r
	if r.Query != nil {
		c.Query = maps.Clone(r.Query)
	}
	return &c
}

// Config is the immutable per-popup configuration.
type Config struct {
	OpenedClass         string
	OpenedBodyClass     string
	CloseButtonSelector string
	TargetID            string // data-popup-id of the overlay; defaults to the trigger's data-popup-target
	EventNamespace      string

	LockScreen             bool
	CloseOnBackgroundClick bool
	CloseOnEscape          bool
	CloseOnResize          bool
	OpenOnActivate         bool

	BeforeOpen  Hook
	AfterOpen   Hook
	BeforeClose Hook
	AfterClose  Hook

	Remote *Remote
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		OpenedClass:            DefaultOpenedClass,
		OpenedBodyClass:        DefaultOpenedBodyClass,
		CloseButtonSelector:    DefaultCloseButtonSelector,
		EventNamespace:         DefaultEventNamespace,
		LockScreen:             true,
		CloseOnBackgroundClick: true,
		CloseOnEscape:          true,
		CloseOnResize:          false,
		OpenOnActivate:         true,
	}
}

// Validate checks the fields every popup needs.
func (c Config) Validate() error {
	switch {
	case c.TargetID == "":
		return ErrEmptyTarget
	case c.OpenedClass == "":
		return ErrEmptyOpenedClass
	case c.OpenedBodyClass == "":
		return ErrEmptyBodyClass
	case c.EventNamespace == "":
		return ErrEmptyNamespace
	case c.CloseButtonSelector == "":
		return ErrEmptyCloseButton
	case c.Remote != nil && c.Remote.Timeout < 0:
		return ErrNegativeTimeout
	}
	return nil
}

// Options overrides a base Config. Nil fields keep the base value.
type Options struct {
	OpenedClass         *string
	OpenedBodyClass     *string
	CloseButtonSelector *string
	TargetID            *string
	EventNamespace      *string

	LockScreen             *bool
	CloseOnBackgroundClick *bool
	CloseOnEscape          *bool
	CloseOnResize          *bool
	OpenOnActivate         *bool

	BeforeOpen  Hook
	AfterOpen   Hook
	BeforeClose Hook
	AfterClose  Hook

	Remote *Remote
}

// Merge returns base with every set field of o applied. Neither argument is
// modified.
func Merge(base Config, o Options) Config {
	c := base
	c.Remote = base.Remote.clone()

	setString(&c.OpenedClass, o.OpenedClass)
	setString(&c.OpenedBodyClass, o.OpenedBodyClass)
	setString(&c.CloseButtonSelector, o.CloseButtonSelector)
	setString(&c.TargetID, o.TargetID)
	setString(&c.EventNamespace, o.EventNamespace)

	setBool(&c.LockScreen, o.LockScreen)
	setBool(&c.CloseOnBackgroundClick, o.CloseOnBackgroundClick)
	setBool(&c.CloseOnEscape, o.CloseOnEscape)
	setBool(&c.CloseOnResize, o.CloseOnResize)
	setBool(&c.OpenOnActivate, o.OpenOnActivate)

	setHook(&c.BeforeOpen, o.BeforeOpen)
	setHook(&c.AfterOpen, o.AfterOpen)
	setHook(&c.BeforeClose, o.BeforeClose)
	setHook(&c.AfterClose, o.AfterClose)

	if o.Remote != nil {
		c.Remote = o.Remote.clone()
	}
	return c
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setHook(dst *Hook, v Hook) {
	if v != nil {
		*dst = v
	}
}

// HookSet maps hook names used in configuration files to hooks.
type HookSet map[string]Hook

// Resolve returns the hook registered under name. An empty name yields nil;
// an unknown name is logged and ignored so the lifecycle still runs.
func (hs HookSet) Resolve(name string, logger *slog.Logger) Hook {
	if name == "" {
		return nil
	}
	if h, ok := hs[name]; ok && h != nil {
		return h
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("unknown popup hook, ignoring", "hook", name)
	return nil
}

// Chain runs hooks in order, skipping nil ones.
func Chain(hooks ...Hook) Hook {
	var set []Hook
	for _, h := range hooks {
		if h != nil {
			set = append(set, h)
		}
	}
	switch len(set) {
	case 0:
		return nil
	case 1:
		return set[0]
	}
	return func(p *Popup) {
		for _, h := range set {
			h(p)
		}
	}
}
