package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
	"github.com/austinmjames/digital-library-core-sub002/internal/logger"
	"github.com/austinmjames/digital-library-core-sub002/internal/ref"
	"github.com/austinmjames/digital-library-core-sub002/internal/scroll"
	"github.com/austinmjames/digital-library-core-sub002/internal/settings"
	"github.com/austinmjames/digital-library-core-sub002/internal/theme"
	"github.com/austinmjames/digital-library-core-sub002/internal/window"
)

type viewMode int

const (
	modeReader viewMode = iota
	modeGoto
)

// header (title + rule) above the viewport, status and help below it.
const chromeHeight = 4

var errNoTranslations = errors.New("no other translations available")

// Props are what the embedding program controls.
type Props struct {
	Initial           *api.Chapter
	ActiveTranslation string
	// OnChapterVisible is called with the chapter entering the reading band.
	OnChapterVisible func(book, chapter string)
}

// Deps are the collaborators the reader needs.
type Deps struct {
	Fetcher        api.Fetcher
	Policy         window.CrossBookPolicy
	Settings       settings.Settings
	Store          settings.Store
	Log            logger.Logger
	SentinelMargin int
	Context        context.Context
}

// engine holds the observers. It is shared by every copy of the Model.
type engine struct {
	tracker   *scroll.Tracker
	reporter  *scroll.VisibilityReporter
	sentinels *scroll.Sentinels
	onVisible func(book, chapter string)

	wantNext, wantPrev       bool
	pendingNext, pendingPrev bool

	blocks    []scroll.Block
	verseTops map[string]map[int]int
}

func (e *engine) block(ref string) (scroll.Block, bool) {
	for _, b := range e.blocks {
		if b.Ref == ref {
			return b, true
		}
	}
	return scroll.Block{}, false
}

type Model struct {
	ctx      context.Context
	props    Props
	fetcher  api.Fetcher
	store    settings.Store
	log      logger.Logger
	win      *window.Manager
	eng      *engine
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	settings     settings.Settings
	theme        theme.Theme
	styles       theme.Styles
	translations []api.Translation

	mode          viewMode
	width         int
	height        int
	ready         bool
	retranslating bool
	err           error
}

type loadedMsg struct {
	dir     window.Direction
	outcome window.Outcome
}

type gotoMsg struct {
	query   ref.Query
	chapter *api.Chapter
	err     error
}

type retranslatedMsg struct {
	translation string
	err         error
}

type translationsMsg struct {
	list []api.Translation
	err  error
}

func New(props Props, deps Deps) (Model, error) {
	if deps.Fetcher == nil {
		return Model{}, errors.New("reader needs a fetcher")
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Store == nil {
		deps.Store = settings.NewMemoryStore()
	}
	if deps.Settings == (settings.Settings{}) {
		deps.Settings = settings.Default()
	}

	opts := []window.Option{window.WithPolicy(deps.Policy), window.WithLogger(deps.Log)}
	if props.ActiveTranslation != "" {
		opts = append(opts, window.WithTranslation(props.ActiveTranslation))
	}
	win, err := window.New(props.Initial, deps.Fetcher, opts...)
	if err != nil {
		return Model{}, err
	}

	ti := textinput.New()
	ti.Placeholder = "Genesis 1:3, Berakhot 2a"
	ti.Prompt = "Go to: "
	ti.CharLimit = 64
	ti.Width = 40
	ti.Cursor.SetMode(cursor.CursorStatic)

	eng := &engine{tracker: scroll.NewTracker(), onVisible: props.OnChapterVisible}
	eng.reporter = scroll.NewVisibilityReporter(eng.tracker, func(book, chapter string) {
		if eng.onVisible != nil {
			eng.onVisible(book, chapter)
		}
	})
	eng.sentinels = scroll.NewSentinels(eng.tracker, deps.SentinelMargin,
		func() { eng.wantNext = true },
		func() { eng.wantPrev = true },
	)

	m := Model{
		ctx:      deps.Context,
		props:    props,
		fetcher:  deps.Fetcher,
		store:    deps.Store,
		log:      deps.Log,
		win:      win,
		eng:      eng,
		input:    ti,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		settings: deps.Settings,
		mode:     modeReader,
	}
	m.applyTheme()
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadTranslations())
}

// Settings returns the current display settings.
func (m Model) Settings() settings.Settings { return m.settings }

// Chapters returns the loaded window.
func (m Model) Chapters() []*api.Chapter { return m.win.Chapters() }

// SetProps applies changed props. A new initial chapter replaces the window
// at once; a new translation refetches every loaded chapter.
func (m Model) SetProps(p Props) (Model, tea.Cmd) {
	m.eng.onVisible = p.OnChapterVisible
	var cmd tea.Cmd
	if p.Initial != nil && p.Initial != m.props.Initial {
		m.resetTo(p.Initial)
		cmd = m.sync()
	}
	if p.ActiveTranslation != "" && p.ActiveTranslation != m.win.Translation() {
		var tcmd tea.Cmd
		m, tcmd = m.setTranslation(p.ActiveTranslation)
		cmd = tea.Batch(cmd, tcmd)
	}
	m.props = p
	return m, cmd
}

func (m Model) loadTranslations() tea.Cmd {
	lister, ok := m.fetcher.(api.TranslationLister)
	if !ok {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		list, err := lister.Translations(ctx)
		return translationsMsg{list: list, err: err}
	}
}

func (m Model) load(d window.Direction) tea.Cmd {
	w, ctx := m.win, m.ctx
	return func() tea.Msg {
		return loadedMsg{dir: d, outcome: w.Load(ctx, d)}
	}
}

func (m Model) fetchGoto(q ref.Query) tea.Cmd {
	f, ctx, translation := m.fetcher, m.ctx, m.win.Translation()
	return func() tea.Msg {
		ch, err := f.FetchChapter(ctx, q.ChapterRef(), translation)
		return gotoMsg{query: q, chapter: ch, err: err}
	}
}

func (m Model) setTranslation(id string) (Model, tea.Cmd) {
	if m.retranslating {
		return m, nil
	}
	m.retranslating = true
	w, ctx := m.win, m.ctx
	return m, func() tea.Msg {
		return retranslatedMsg{translation: id, err: w.SetTranslation(ctx, id)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode == modeGoto {
			return m.updateGoto(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.eng.reporter.Close()
			m.eng.sentinels.Close()
			return m, tea.Quit
		case "g":
			m.mode = modeGoto
			m.input.SetValue("")
			return m, m.input.Focus()
		case "t":
			if len(m.translations) < 2 {
				m.err = errNoTranslations
				return m, nil
			}
			return m.setTranslation(nextTranslation(m.translations, m.win.Translation()))
		case "m":
			m.settings.DisplayMode = m.settings.DisplayMode.Next()
			return m.settingsChanged()
		case "v":
			m.settings.ShowVerseNumbers = !m.settings.ShowVerseNumbers
			return m.settingsChanged()
		case "T":
			m.settings.Theme = theme.Next(m.settings.Theme).Slug
			m.applyTheme()
			return m.settingsChanged()
		case "+", "=":
			m.settings = m.settings.AdjustSpacing(1)
			return m.settingsChanged()
		case "-":
			m.settings = m.settings.AdjustSpacing(-1)
			return m.settingsChanged()
		case "r":
			m.err = nil
			m.eng.tracker.Remeasure()
			return m, m.dispatch()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(msg.Height-chromeHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.applyTheme()
		m.relayout(true)
		return m, m.sync()

	case loadedMsg:
		if msg.dir == window.Backward {
			m.eng.pendingPrev = false
		} else {
			m.eng.pendingNext = false
		}
		switch msg.outcome {
		case window.Grew, window.Exhausted, window.Boundary:
			m.relayout(true)
		case window.Failed:
			m.err = m.win.LastError()
			return m, nil
		default:
			return m, nil
		}
		return m, m.sync()

	case gotoMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.chapter == nil {
			m.err = fmt.Errorf("%s: %w", ref.ToDisplay(msg.query.Ref()), api.ErrNoContent)
			return m, nil
		}
		m.err = nil
		m.resetTo(msg.chapter)
		if idx, err := strconv.Atoi(msg.query.Segment); err == nil {
			if top, ok := m.eng.verseTops[msg.chapter.Ref][idx]; ok {
				m.viewport.SetYOffset(top)
			}
		}
		return m, m.sync()

	case retranslatedMsg:
		m.retranslating = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.settings.Translation = msg.translation
		m.save()
		m.relayout(true)
		return m, m.sync()

	case translationsMsg:
		if msg.err != nil {
			m.log.Warn("Failed to list translations", "error", msg.err)
			return m, nil
		}
		m.translations = msg.list
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if !m.ready {
		return m, nil
	}
	before := m.viewport.YOffset
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	if m.viewport.YOffset != before {
		cmds = append(cmds, m.sync())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateGoto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeReader
		m.input.Blur()
		return m, nil
	case "enter":
		m.mode = modeReader
		m.input.Blur()
		q, err := ref.ParseQuery(m.input.Value())
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, m.fetchGoto(q)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resetTo(ch *api.Chapter) {
	if err := m.win.Reset(ch); err != nil {
		m.err = err
		return
	}
	m.eng.pendingNext, m.eng.pendingPrev = false, false
	m.relayout(false)
	m.viewport.GotoTop()
}

func (m Model) settingsChanged() (tea.Model, tea.Cmd) {
	m.save()
	if !m.ready {
		return m, nil
	}
	m.relayout(true)
	return m, m.sync()
}

func (m *Model) save() {
	if err := m.store.Save(m.settings); err != nil {
		m.log.Warn("Failed to save settings", "error", err)
	}
}

func (m *Model) applyTheme() {
	m.theme = theme.Get(m.settings.Theme)
	m.styles = m.theme.Styles(m.width)
	m.spinner.Style = m.styles.Spinner
}

// relayout renders the window into the viewport. With anchor set, the
// chapter being read keeps its place on screen: the height above it stands
// in for the total height, so a chapter appended in the same frame does not
// move the view.
func (m *Model) relayout(anchor bool) {
	if !m.ready {
		return
	}
	var a scroll.Anchor
	anchorRef := ""
	if anchor {
		at := m.firstBlockRef()
		if cur, ok := m.eng.reporter.Current(); ok {
			if _, found := m.eng.block(cur.Ref); found {
				at = cur.Ref
			}
		}
		if b, ok := m.eng.block(at); ok {
			a = scroll.Capture(b.Top, m.viewport.YOffset)
			anchorRef = at
		}
	}

	chapters := m.win.Chapters()
	blocks := make([]scroll.Block, len(chapters))
	parts := make([]string, len(chapters))
	tops := make(map[string]map[int]int, len(chapters))
	for i, ch := range chapters {
		text, verseTops := m.renderChapter(ch)
		parts[i] = text
		tops[ch.Ref] = verseTops
		blocks[i] = scroll.Block{
			Ref:     ch.Ref,
			Book:    ch.Book,
			Chapter: ch.ChapterNumber,
			Height:  strings.Count(text, "\n") + 1,
		}
	}
	end := scroll.Layout(blocks, 0)
	for _, b := range blocks {
		for idx, top := range tops[b.Ref] {
			tops[b.Ref][idx] = b.Top + top
		}
	}
	m.eng.blocks = blocks
	m.eng.verseTops = tops
	m.viewport.SetContent(strings.Join(parts, "\n"))

	if anchorRef != "" {
		if b, ok := m.eng.block(anchorRef); ok {
			m.viewport.SetYOffset(scroll.Clamp(a.Restore(b.Top), end, m.viewport.Height))
		}
	}
	m.eng.reporter.Sync(blocks)
	m.eng.sentinels.Place(0, end, m.win.HasPrev(), m.win.HasMore())
}

func (m *Model) firstBlockRef() string {
	if len(m.eng.blocks) == 0 {
		return ""
	}
	return m.eng.blocks[0].Ref
}

// sync reports the viewport to the observers and issues any loads they ask
// for.
func (m *Model) sync() tea.Cmd {
	if !m.ready {
		return nil
	}
	m.eng.tracker.Scroll(m.viewport.YOffset, m.viewport.Height)
	if cur, ok := m.eng.reporter.Current(); ok && cur.Ref != m.settings.LastRef {
		m.settings.LastRef = cur.Ref
		m.save()
	}
	return m.dispatch()
}

// dispatch turns sentinel triggers into load commands, at most one per
// direction in flight.
func (m *Model) dispatch() tea.Cmd {
	var cmds []tea.Cmd
	if m.eng.wantNext {
		m.eng.wantNext = false
		if !m.eng.pendingNext {
			m.eng.pendingNext = true
			cmds = append(cmds, m.load(window.Forward))
		}
	}
	if m.eng.wantPrev {
		m.eng.wantPrev = false
		if !m.eng.pendingPrev {
			m.eng.pendingPrev = true
			cmds = append(cmds, m.load(window.Backward))
		}
	}
	return tea.Batch(cmds...)
}

func nextTranslation(list []api.Translation, current string) string {
	for i, t := range list {
		if t.ID == current {
			return list[(i+1)%len(list)].ID
		}
	}
	return list[0].ID
}
