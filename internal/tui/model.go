// Package tui provides the BubbleTea-based terminal host for a popup session.
package tui

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/popui/internal/config"
	"github.com/jmylchreest/popui/internal/dom"
	"github.com/jmylchreest/popui/internal/output"
	"github.com/jmylchreest/popui/internal/popup"
	"github.com/jmylchreest/popui/internal/session"
)

// scrollStep is how far j/k move the page.
const scrollStep = 5

// dispatchBuffer bounds completions waiting for the UI goroutine.
const dispatchBuffer = 64

// Mode represents the current UI mode.
type Mode int

const (
	ModePage Mode = iota
	ModeSnapshot
	ModeHelp
)

// Model is the main TUI model.
type Model struct {
	sess *session.Session
	cfg  *config.Config

	// Current mode
	mode Mode

	// Components
	list     list.Model
	viewport viewport.Model
	help     help.Model

	width  int
	height int
	ready  bool

	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool

	// Remote completions and document changes, delivered into Update
	events  <-chan func()
	changes <-chan struct{}
}

// triggerItem wraps a binding for the list component.
type triggerItem struct {
	binding session.Binding
}

func (i triggerItem) name() string {
	if i.binding.Entry.Name != "" {
		return i.binding.Entry.Name
	}
	return i.binding.Popup.TargetID()
}

func (i triggerItem) Title() string {
	return i.name()
}

func (i triggerItem) Description() string {
	p := i.binding.Popup
	desc := fmt.Sprintf("%s - %s", p.Trigger(), p.State())
	if r := p.Config().Remote; r != nil && r.URL != "" {
		desc += " - remote"
	}
	return desc
}

func (i triggerItem) FilterValue() string {
	return i.name()
}

// triggerDelegate highlights the open popup and dims popups without an overlay.
type triggerDelegate struct {
	list.DefaultDelegate
}

func newTriggerDelegate() triggerDelegate {
	return triggerDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// Render renders a trigger row.
func (d triggerDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(triggerItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	isSelected := index == m.Index()
	p := ti.binding.Popup
	itemWidth := m.Width() - d.DefaultDelegate.Styles.NormalTitle.GetHorizontalPadding()

	titleStyle := d.DefaultDelegate.Styles.NormalTitle
	descStyle := d.DefaultDelegate.Styles.NormalDesc
	if isSelected {
		titleStyle = d.DefaultDelegate.Styles.SelectedTitle
		descStyle = d.DefaultDelegate.Styles.SelectedDesc
	}
	switch {
	case p.Overlay() == nil:
		titleStyle = titleStyle.Foreground(lipgloss.Color("8"))
		descStyle = descStyle.Foreground(lipgloss.Color("8"))
	case p.State() == popup.Open:
		titleStyle = titleStyle.Foreground(lipgloss.Color("10"))
	}

	title := ti.Title()
	if p.State() == popup.Open {
		title = "[*] " + title
	}
	if itemWidth > 0 && len(title) > itemWidth {
		title = title[:itemWidth-1] + "…"
	}
	desc := ti.Description()
	if itemWidth > 0 && len(desc) > itemWidth {
		desc = desc[:itemWidth-1] + "…"
	}

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// New creates a TUI model for sess. events carries remote completions that
// must run on the UI goroutine; changes signals document file writes. Either
// may be nil.
func New(sess *session.Session, events <-chan func(), changes <-chan struct{}) Model {
	l := list.New(nil, newTriggerDelegate(), 0, 0)
	l.Title = "Popup Triggers"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	m := Model{
		sess:    sess,
		cfg:     sess.Config(),
		mode:    ModePage,
		list:    l,
		help:    help.New(),
		keys:    DefaultKeyMap(),
		events:  events,
		changes: changes,
	}
	m.list.SetItems(m.buildListItems())
	return m
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForDispatch,
		m.waitForChanges,
	)
}

type dispatchMsg struct {
	fn func()
}

// waitForDispatch waits for the next remote completion.
func (m Model) waitForDispatch() tea.Msg {
	if m.events == nil {
		return nil
	}
	fn, ok := <-m.events
	if !ok {
		return nil
	}
	return dispatchMsg{fn: fn}
}

type documentChangedMsg struct{}

// waitForChanges waits for the document file to change.
func (m Model) waitForChanges() tea.Msg {
	if m.changes == nil {
		return nil
	}
	if _, ok := <-m.changes; !ok {
		return nil
	}
	return documentChangedMsg{}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.list.SetSize(m.listWidth(), msg.Height-2)
		m.viewport = viewport.New(msg.Width, msg.Height-3)
		m.viewport.YPosition = 1
		m.help.Width = msg.Width
		if m.mode == ModeSnapshot {
			m.viewport.SetContent(m.renderSnapshot())
		}
		return m, nil

	case dispatchMsg:
		msg.fn()
		m.refresh()
		return m, m.waitForDispatch

	case documentChangedMsg:
		var cmd tea.Cmd
		m, cmd = m.act(m.sess.Reload(), "Document reloaded")
		return m, tea.Batch(cmd, m.waitForChanges)

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Copied snapshot to clipboard", false)
	}

	if m.mode == ModeSnapshot {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModePage
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	switch m.mode {
	case ModeHelp:
		if key.Matches(msg, m.keys.Escape) {
			m.mode = ModePage
		}
		return m, nil
	case ModeSnapshot:
		return m.handleSnapshotKey(msg)
	default:
		return m.handlePageKey(msg)
	}
}

// handlePageKey turns keys into page events.
func (m Model) handlePageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next):
		m.selectOffset(1)
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		m.selectOffset(-1)
		return m, nil

	case key.Matches(msg, m.keys.Activate):
		if err := m.sess.Activate(m.list.Index()); err != nil {
			return m.act(err, "")
		}
		if n := m.sess.Pending(); n > 0 {
			return m.act(nil, fmt.Sprintf("Fetching remote content (%d pending)", n))
		}
		return m.act(nil, "")

	case key.Matches(msg, m.keys.Escape):
		m.sess.PressKey("Escape")
		return m.act(nil, "")

	case key.Matches(msg, m.keys.Background):
		return m.act(m.sess.ClickBackground(), "")

	case key.Matches(msg, m.keys.Close):
		return m.act(m.sess.ClickClose(), "")

	case key.Matches(msg, m.keys.Resize):
		m.sess.Resize(m.width, m.height)
		w := m.sess.Document().Metrics()
		return m.act(nil, fmt.Sprintf("Resized window to %dx%d", w.ViewportWidth, w.ViewportHeight))

	case key.Matches(msg, m.keys.ScrollDown):
		return m.scroll(scrollStep)

	case key.Matches(msg, m.keys.ScrollUp):
		return m.scroll(-scrollStep)

	case key.Matches(msg, m.keys.Reload):
		return m.act(m.sess.Reload(), "Document reloaded")

	case key.Matches(msg, m.keys.Snapshot):
		m.mode = ModeSnapshot
		m.viewport.SetContent(m.renderSnapshot())
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyToClipboard(m.renderSnapshot())
	}

	return m, nil
}

// handleSnapshotKey handles keys while the snapshot is shown.
func (m Model) handleSnapshotKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Snapshot):
		m.mode = ModePage
		return m, nil
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyToClipboard(m.renderSnapshot())
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) scroll(delta int) (tea.Model, tea.Cmd) {
	if !m.sess.Scroll(delta) {
		return m.act(nil, "Page is locked by the open popup")
	}
	return m.act(nil, "")
}

// act refreshes the list after a page event and reports its outcome.
func (m Model) act(err error, done string) (Model, tea.Cmd) {
	m.refresh()
	switch {
	case err != nil:
		return m, status(err.Error(), true)
	case done != "":
		return m, status(done, false)
	}
	return m, nil
}

// selectOffset moves the selection, wrapping at either end.
func (m *Model) selectOffset(delta int) {
	n := len(m.list.Items())
	if n == 0 {
		return
	}
	m.list.Select(((m.list.Index()+delta)%n + n) % n)
}

// refresh rebuilds the trigger list. A reload may replace every binding.
func (m *Model) refresh() {
	idx := m.list.Index()
	m.list.SetItems(m.buildListItems())
	if n := len(m.list.Items()); idx >= n && n > 0 {
		idx = n - 1
	}
	m.list.Select(idx)
	if m.mode == ModeSnapshot {
		m.viewport.SetContent(m.renderSnapshot())
	}
}

func (m Model) buildListItems() []list.Item {
	bindings := m.sess.Bindings()
	items := make([]list.Item, len(bindings))
	for i, b := range bindings {
		items[i] = triggerItem{binding: b}
	}
	return items
}

func (m Model) listWidth() int {
	return m.width / 3
}

// renderSnapshot renders the session snapshot as YAML.
func (m Model) renderSnapshot() string {
	opts := output.DefaultFormatterOptions()
	opts.JournalLimit = m.cfg.TUI.JournalLines
	var buf bytes.Buffer
	if err := output.NewYAMLFormatter(opts).Format(&buf, m.sess.Snapshot()); err != nil {
		return "error: " + err.Error()
	}
	return buf.String()
}

// renderPage renders the page panel: body state, the open overlay and the
// latest journal entries.
func (m Model) renderPage(width int) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	snap := m.sess.Snapshot()
	doc := m.sess.Document()

	var s string
	s += headerStyle.Render("Page") + "\n\n"
	if snap.Document != "" {
		s += labelStyle.Render("Document: ") + snap.Document + "\n"
	}
	s += labelStyle.Render("Scroll: ") + fmt.Sprintf("%d/%d", snap.Scroll, doc.ContentHeight()) + "\n"
	metrics := doc.Metrics()
	s += labelStyle.Render("Window: ") + fmt.Sprintf("%dx%d", metrics.ViewportWidth, metrics.ViewportHeight) + "\n"
	if classes := snap.BodyClassList(); classes != "" {
		s += labelStyle.Render("Body: ") + classes + "\n"
	}
	if snap.BodyStyle != "" {
		s += labelStyle.Render("Style: ") + snap.BodyStyle + "\n"
	}
	if snap.Location != "" {
		s += labelStyle.Render("Location: ") + snap.Location + "\n"
	}
	if snap.Pending > 0 {
		s += labelStyle.Render("Pending: ") + humanize.Comma(int64(snap.Pending)) + "\n"
	}

	s += "\n"
	if p := m.sess.Registry().OpenPopup(); p != nil {
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)
		if width > 4 {
			box = box.Width(width - 4)
		}
		text := strings.TrimSpace(doc.Text(p.Overlay()))
		if text == "" {
			text = "(empty)"
		}
		s += headerStyle.Render("Open: "+p.TargetID()) + "\n"
		s += box.Render(text) + "\n"
	} else {
		s += labelStyle.Render("No popup open") + "\n"
	}

	entries := m.sess.Journal().Last(m.cfg.TUI.JournalLines)
	if len(entries) > 0 {
		s += "\n" + headerStyle.Render("Journal") + "\n"
		now := time.Now()
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			line := fmt.Sprintf("%-9s %s", e.Kind, e.Popup)
			if e.Detail != "" {
				line += " (" + e.Detail + ")"
			}
			s += labelStyle.Render(humanize.RelTime(e.At, now, "ago", "from now")+"  ") + line + "\n"
		}
	}

	return s
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	command := m.cfg.TUI.Clipboard
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, command)}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeSnapshot:
		return m.viewSnapshot()
	case ModeHelp:
		return m.viewHelp()
	default:
		return m.viewPage()
	}
}

func (m Model) viewPage() string {
	panelWidth := m.width - m.listWidth() - 2
	panel := lipgloss.NewStyle().
		Width(panelWidth).
		PaddingLeft(2).
		Render(m.renderPage(panelWidth))

	s := lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), panel)
	return s + "\n" + m.footer("page")
}

func (m Model) viewSnapshot() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	header := headerStyle.Render("Session Snapshot")

	return header + "\n" + m.viewport.View() + "\n" + m.footer("snapshot")
}

// footer shows the status message, or the keybind bar when there is none.
func (m Model) footer(mode string) string {
	if m.statusMsg == "" {
		return m.buildKeybindBar(m.width, mode)
	}
	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("7"))
	if m.statusErr {
		statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
	}
	return statusStyle.Render(m.statusMsg)
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"
	s += m.help.FullHelpView(m.keys.FullHelp()) + "\n"

	s += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(
		"Press ? or esc to return")

	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key      string
	desc     string
	priority int // lower = more important (shown first)
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// mode determines which keybinds are shown: "page" or "snapshot".
func (m Model) buildKeybindBar(width int, mode string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind

	switch mode {
	case "page":
		binds = []keybind{
			{"q", "quit", 1},
			{"enter", "click", 2},
			{"tab", "next", 3},
			{"esc", "escape", 4},
			{"?", "help", 5},
			{"x", "close", 6},
			{"b", "background", 7},
			{"j/k", "scroll", 8},
			{"w", "resize", 9},
			{"s", "snapshot", 10},
			{"r", "reload", 11},
		}
	case "snapshot":
		binds = []keybind{
			{"q", "quit", 1},
			{"esc", "back", 2},
			{"y", "copy", 3},
			{"j/k", "scroll", 4},
		}
	}

	// Build the bar, adding keybinds until we run out of space
	const separator = "  "
	result := ""
	for _, b := range binds {
		item := keyStyle.Render(b.key) + " " + b.desc
		plainItem := b.key + " " + b.desc
		testLen := len(result) + len(separator) + len(plainItem)
		if result != "" {
			testLen = len(stripANSI(result)) + len(separator) + len(plainItem)
		}

		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += item
	}

	return style.Render(result)
}

// stripANSI removes ANSI escape codes for length calculation.
func stripANSI(s string) string {
	result := make([]byte, 0, len(s))
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result = append(result, s[i])
	}
	return string(result)
}

// RunOptions configures the TUI.
type RunOptions struct {
	Config    *config.Config
	Logger    *slog.Logger
	Transport popup.Transport // nil uses HTTP
	Hooks     popup.HookSet
	Recorder  session.Recorder // optional journal sink
}

// Run builds a session from the configuration and starts the TUI.
func Run(opts RunOptions) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := make(chan func(), dispatchBuffer)
	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithHooks(opts.Hooks),
		session.WithDispatcher(func(fn func()) { events <- fn }),
	}
	if opts.Transport != nil {
		sessOpts = append(sessOpts, session.WithTransport(opts.Transport))
	}
	if opts.Recorder != nil {
		sessOpts = append(sessOpts, session.WithRecorder(opts.Recorder))
	}

	sess, err := session.New(cfg, sessOpts...)
	if err != nil {
		return err
	}

	// Start file watcher if requested
	var changes chan struct{}
	var watcher *dom.FileWatcher
	if cfg.Document.Watch && cfg.Document.Path != "" {
		changes = make(chan struct{}, 1)
		watcher, err = dom.NewFileWatcher(cfg.Document.Path, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create file watcher: %v\n", err)
		} else if err := watcher.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to start file watcher: %v\n", err)
		}
	}

	m := New(sess, events, changes)
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, err = p.Run()

	// Stop watcher on exit
	if watcher != nil {
		watcher.Stop()
	}

	return err
}
