package session

import (
	"strings"
	"time"
)

// PopupState describes one bound popup.
type PopupState struct {
	Name        string `json:"name" yaml:"name"`
	Target      string `json:"target" yaml:"target"`
	ID          string `json:"id" yaml:"id"`
	Trigger     string `json:"trigger" yaml:"trigger"`
	State       string `json:"state" yaml:"state"`
	Overlay     bool   `json:"overlay" yaml:"overlay"` // false when the overlay element is missing
	SavedScroll *int   `json:"saved_scroll,omitempty" yaml:"saved_scroll,omitempty"`
	Remote      string `json:"remote,omitempty" yaml:"remote,omitempty"`
}

// Snapshot is the observable state of a session at one point in time.
type Snapshot struct {
	Taken       time.Time    `json:"taken" yaml:"taken"`
	Document    string       `json:"document,omitempty" yaml:"document,omitempty"`
	Scroll      int          `json:"scroll" yaml:"scroll"`
	BodyClasses []string     `json:"body_classes" yaml:"body_classes"`
	BodyStyle   string       `json:"body_style,omitempty" yaml:"body_style,omitempty"`
	Open        string       `json:"open,omitempty" yaml:"open,omitempty"`
	Pending     int          `json:"pending" yaml:"pending"`
	Location    string       `json:"location,omitempty" yaml:"location,omitempty"`
	Reloads     int          `json:"reloads" yaml:"reloads"`
	Popups      []PopupState `json:"popups" yaml:"popups"`
	Journal     []Entry      `json:"journal" yaml:"journal"`
}

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	body := s.doc.Body()
	snap := Snapshot{
		Taken:       s.now(),
		Document:    s.source.Path,
		Scroll:      s.doc.ScrollOffset(),
		BodyClasses: s.doc.Classes(body),
		BodyStyle:   s.doc.Attr(body, "style"),
		Pending:     s.Pending(),
		Location:    s.doc.Location(),
		Reloads:     s.doc.Reloads(),
		Popups:      make([]PopupState, 0, len(s.bindings)),
		Journal:     s.journal.Entries(),
	}
	if snap.BodyClasses == nil {
		snap.BodyClasses = []string{}
	}
	if open := s.reg.OpenPopup(); open != nil {
		snap.Open = open.TargetID()
	}

	for _, b := range s.bindings {
		p := b.Popup
		ps := PopupState{
			Name:    b.Entry.Name,
			Target:  p.TargetID(),
			ID:      p.ID(),
			Trigger: p.Trigger().String(),
			State:   p.State().String(),
			Overlay: p.Overlay() != nil,
		}
		if ps.Name == "" {
			ps.Name = p.TargetID()
		}
		if offset, ok := p.SavedScrollOffset(); ok {
			ps.SavedScroll = &offset
		}
		if r := p.Config().Remote; r != nil {
			ps.Remote = r.URL
		}
		snap.Popups = append(snap.Popups, ps)
	}
	return snap
}

// OpenState returns the state of the open popup, if any.
func (snap Snapshot) OpenState() (PopupState, bool) {
	for _, p := range snap.Popups {
		if p.State == "open" {
			return p, true
		}
	}
	return PopupState{}, false
}

// BodyClassList joins the body classes for display.
func (snap Snapshot) BodyClassList() string {
	return strings.Join(snap.BodyClasses, " ")
}
