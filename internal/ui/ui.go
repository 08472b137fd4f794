package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/tasks"
)

const logLines = 6

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	TransferView
	ResultView
	HistoryView
)

// RunInfo describes the run shown on the confirm screen.
type RunInfo struct {
	Source       string
	Destination  string
	PrimaryTable string
	AuxTable     string
	Recreate     bool
}

// HistoryLister loads recorded runs. Implemented by repositories.RunRepository.
type HistoryLister interface {
	List(criteria map[string]any) ([]*models.Run, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	previous     ViewState
	engine       *tasks.Engine
	info         RunInfo
	history      HistoryLister
	width        int
	height       int
	progressChan chan tasks.ProgressUpdate
	outcome      *runOutcome
	progress     tasks.ProgressUpdate
	messages     []string
	cancelling   bool
	result       *tasks.Result
	err          error
	bar          progress.Model
	spinner      spinner.Model
	mismatchList list.Model
	historyList  list.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model for one engine. history may be nil.
func NewModel(ctx context.Context, engine *tasks.Engine, info RunInfo, history HistoryLister) *Model {
	return &Model{
		ctx:          ctx,
		view:         ConfirmView,
		engine:       engine,
		info:         info,
		history:      history,
		bar:          progress.New(progress.WithDefaultGradient()),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		mismatchList: list.New(nil, list.NewDefaultDelegate(), 80, 12),
		historyList:  list.New(nil, list.NewDefaultDelegate(), 80, 20),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init starts the spinner; the run itself waits for confirmation.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-8, 20)
		m.mismatchList.SetSize(msg.Width-4, msg.Height/2)
		m.historyList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case TransferView:
			return m.handleTransferKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if update.Message != "" {
			m.messages = append(m.messages, update.Message)
			if len(m.messages) > logLines {
				m.messages = m.messages[len(m.messages)-logLines:]
			}
		}
		return m, waitForProgress(m.progressChan, m.outcome)

	case MsgRunComplete:
		outcome := msg.data.(runOutcome)
		m.result = outcome.result
		m.err = outcome.err
		m.view = ResultView
		m.progressChan = nil
		m.outcome = nil
		m.cancelling = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}

		var items []list.Item
		if m.result != nil && m.result.Reconciliation != nil {
			for _, mm := range m.result.Reconciliation.Mismatches {
				items = append(items, mismatchItem{mismatch: mm})
			}
		}
		m.mismatchList.SetItems(items)
		m.mismatchList.Title = "Sample mismatches"
		return m, nil

	case MsgHistoryLoaded:
		loaded := msg.data.(historyLoaded)
		if loaded.err != nil {
			m.err = loaded.err
			return m, nil
		}
		items := make([]list.Item, len(loaded.runs))
		for i, run := range loaded.runs {
			items[i] = runItem{run: run}
		}
		m.historyList.SetItems(items)
		m.historyList.Title = "Recorded runs"
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	case HistoryView:
		return m.renderHistory()
	default:
		return ""
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = TransferView
		return m, m.startRun()
	case key.Matches(msg, m.keys.history):
		return m, m.openHistory()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleTransferKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.cancel != nil && !m.cancelling {
		m.cancelling = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = ConfirmView
		m.result = nil
		m.err = nil
		m.messages = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	case key.Matches(msg, m.keys.history):
		return m, m.openHistory()
	}

	var cmd tea.Cmd
	m.mismatchList, cmd = m.mismatchList.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = m.previous
		return m, nil
	case msg.String() == "q":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.historyList, cmd = m.historyList.Update(msg)
	return m, cmd
}

func (m *Model) openHistory() tea.Cmd {
	if m.history == nil {
		return nil
	}
	m.previous = m.view
	m.view = HistoryView

	history := m.history
	return func() tea.Msg {
		runs, err := history.List(map[string]any{"limit": 50})
		return historyLoadedMsg(runs, err)
	}
}

func (m *Model) startRun() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	ch := make(chan tasks.ProgressUpdate, 100)
	outcome := &runOutcome{}
	m.progressChan = ch
	m.outcome = outcome

	engine := m.engine
	go func() {
		outcome.result, outcome.err = engine.Run(ctx, ch)
		close(ch)
	}()

	return tea.Batch(m.spinner.Tick, waitForProgress(ch, outcome))
}

// waitForProgress relays one update; once ch is closed the outcome written before close is reported.
func waitForProgress(ch <-chan tasks.ProgressUpdate, outcome *runOutcome) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return runCompleteMsg(nil, nil)
		}
		update, ok := <-ch
		if !ok {
			return runCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Migrate album catalog?")

	mode := "reuse tables, clear data rows"
	if m.info.Recreate {
		mode = "delete and recreate tables"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Source"), m.info.Source)
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Destination"), m.info.Destination)
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Albums table"), m.info.PrimaryTable)
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("History table"), m.info.AuxTable)
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Mode"), mode)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	if m.history != nil {
		helpKeys = append(helpKeys, m.keys.history)
	}
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTransfer() string {
	title := styles.title.Render(fmt.Sprintf("Migrating %s → %s", m.info.Source, m.info.Destination))

	phase := phaseLabel(m.progress.Phase)
	if m.cancelling {
		phase = styles.warn.Render("Cancelling after the current chunk...")
	}

	var percent float64
	if m.progress.Phase == tasks.Transferring && m.progress.Total > 0 {
		percent = float64(m.progress.Step) / float64(m.progress.Total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), phase)
	fmt.Fprintf(&b, "%s\n\n", m.bar.ViewAs(percent))
	b.WriteString(renderCounters(m.progress.Counters))
	b.WriteString("\n")
	for _, line := range m.messages {
		fmt.Fprintf(&b, "%s\n", styles.help.Render(line))
	}

	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart}
	if m.history != nil {
		helpKeys = append(helpKeys, m.keys.history)
	}
	helpKeys = append(helpKeys, m.keys.quit)
	helpView := m.help.ShortHelpView(helpKeys)

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Migration failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	r := m.result
	var title string
	switch {
	case r.Verified:
		title = styles.ok.Render("✓ Migration verified")
	case r.Cancelled:
		title = styles.warn.Render("Migration cancelled")
	default:
		title = styles.err.Render("✗ Migration failed")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Run"), r.RunID)
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Duration"), r.Duration.Round(time.Millisecond))
	if rec := r.Reconciliation; rec != nil {
		fmt.Fprintf(&b, "%s%d / %d\n", styles.label.Render("Albums rows"), rec.ActualPrimary, rec.ExpectedPrimary)
		fmt.Fprintf(&b, "%s%d / %d\n", styles.label.Render("History rows"), rec.ActualAux, rec.ExpectedAux)
		fmt.Fprintf(&b, "%s%d\n", styles.label.Render("Sample checked"), rec.SampleChecked)
	}
	b.WriteString(renderCounters(r.Counters))
	if r.Error != "" {
		fmt.Fprintf(&b, "\n%s\n", styles.err.Render(r.Error))
	}

	var mismatches string
	if len(m.mismatchList.Items()) > 0 {
		mismatches = "\n" + m.mismatchList.View()
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, b.String(), mismatches, helpView)
}

func (m *Model) renderHistory() string {
	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Failed to load runs: %v", m.err)),
			m.help.ShortHelpView([]key.Binding{m.keys.back}))
	}
	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.back}
	return fmt.Sprintf("%s\n\n%s", m.historyList.View(), m.help.ShortHelpView(helpKeys))
}

func renderCounters(c tasks.CounterSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d\n", styles.label.Render("Fetched"), c.Fetched)
	fmt.Fprintf(&b, "%s%d\n", styles.label.Render("Written"), c.Written)
	if c.Truncated > 0 {
		fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Truncated"), styles.warn.Render(fmt.Sprint(c.Truncated)))
	}
	if c.Failed > 0 {
		fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Failed"), styles.err.Render(fmt.Sprint(c.Failed)))
	}
	if c.PagesSkipped > 0 {
		fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Pages skipped"), styles.err.Render(fmt.Sprint(c.PagesSkipped)))
		fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Not fetched"), styles.err.Render(fmt.Sprint(c.Unfetched)))
	}
	return b.String()
}

func phaseLabel(s tasks.State) string {
	switch s {
	case tasks.Idle:
		return "Starting..."
	case tasks.ConnectingSource:
		return "Connecting to source..."
	case tasks.ConnectingDestination:
		return "Connecting to destination..."
	case tasks.Counting:
		return "Counting source records..."
	case tasks.PreparingDestination:
		return "Preparing destination tables..."
	case tasks.Transferring:
		return "Transferring records..."
	case tasks.Reconciling:
		return "Reconciling..."
	default:
		return s.String()
	}
}
