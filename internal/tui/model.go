package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wishlistai/backend/internal/channel"
	"github.com/wishlistai/backend/internal/contribute"
	"github.com/wishlistai/backend/internal/models"
	"github.com/wishlistai/backend/internal/viewstate"
)

// ItemSubmitter performs one reservation or contribution.
// *contribute.Submitter is one.
type ItemSubmitter interface {
	Submit(ctx context.Context, listID, itemID string, req contribute.Request) error
}

// Model is the bubbletea model of the live wishlist view.
type Model struct {
	ctx       context.Context
	submitter ItemSubmitter
	updates   <-chan tea.Msg
	guestName string

	snap   viewstate.Snapshot
	state  channel.State
	cursor int

	flows  map[string]*contribute.ItemUI
	active string

	input  textinput.Model
	bar    progress.Model
	notice string
}

// NewModel builds the view around an already hydrated snapshot. updates
// may be nil when nothing streams into the view.
func NewModel(ctx context.Context, snap viewstate.Snapshot, updates <-chan tea.Msg, submitter ItemSubmitter, guestName string) Model {
	ti := textinput.New()
	ti.Prompt = "Amount: "
	ti.Placeholder = "12.50"
	ti.CharLimit = 16

	return Model{
		ctx:       ctx,
		submitter: submitter,
		updates:   updates,
		guestName: guestName,
		snap:      snap,
		state:     channel.StateConnecting,
		flows:     map[string]*contribute.ItemUI{},
		input:     ti,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

func (m Model) Init() tea.Cmd {
	return m.wait()
}

func (m Model) wait() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		return <-updates
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if w := msg.Width - 20; w > 10 && w < 40 {
			m.bar.Width = w
		}
		return m, nil

	case StateMsg:
		m.state = msg.State
		return m, m.wait()

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, m.wait()

	case SubmitResultMsg:
		m.finish(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.active != "" {
			return m.updateForm(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *Model) applySnapshot(snap viewstate.Snapshot) {
	m.snap = snap
	if m.cursor >= len(snap.Items) {
		m.cursor = max(len(snap.Items)-1, 0)
	}
	if m.active == "" {
		return
	}

	item, ok := m.item(m.active)
	if !ok {
		m.closeForm("That item was removed.")
		return
	}
	if m.flow(item.ID).Phase(item) == contribute.PhaseFullyReserved {
		m.closeForm(fmt.Sprintf("%s is now fully reserved.", item.Title))
	}
}

func (m *Model) finish(res SubmitResultMsg) {
	flow := m.flow(res.ItemID)
	flow.Finish(res.Err)
	if res.Err != nil {
		if errors.Is(res.Err, contribute.ErrClosed) {
			m.closeForm(describe(res.Err))
		}
		return
	}

	m.active = ""
	m.input.Reset()
	m.input.Blur()
	m.notice = "Thank you! The totals update as soon as the list confirms it."
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Items)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.snap.Items) == 0 {
			return m, nil
		}
		item := m.snap.Items[m.cursor]
		if err := m.flow(item.ID).Open(item); err != nil {
			m.notice = describe(err)
			return m, nil
		}
		m.active = item.ID
		m.notice = ""
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item, ok := m.item(m.active)
	if !ok {
		m.closeForm("")
		return m, nil
	}
	flow := m.flow(item.ID)

	switch flow.Phase(item) {
	case contribute.PhaseSubmitting:
		return m, nil

	case contribute.PhaseSelectingAction:
		switch msg.String() {
		case "esc":
			m.closeForm("")
		case "f", "c":
			if err := flow.Choose(item, msg.String() == "f"); err != nil {
				flow.LastErr = err
				return m, nil
			}
			flow.LastErr = nil
			if !flow.Full() {
				m.input.Reset()
				return m, m.input.Focus()
			}
		}
		return m, nil

	case contribute.PhaseEnteringDetails:
		switch msg.String() {
		case "esc":
			m.closeForm("")
			return m, nil
		case "enter":
			return m.submit(item, flow)
		}
		if flow.Full() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	m.closeForm("")
	return m, nil
}

func (m Model) submit(item models.PublicItem, flow *contribute.ItemUI) (tea.Model, tea.Cmd) {
	var amount int64
	if !flow.Full() {
		var err error
		if amount, err = ParseAmount(m.input.Value()); err != nil {
			flow.LastErr = err
			return m, nil
		}
	}

	req := contribute.ForItem(item, amount, flow.Full(), m.guestName)
	if err := contribute.Check(req); err != nil {
		flow.LastErr = err
		return m, nil
	}
	if err := flow.BeginSubmit(item); err != nil {
		flow.LastErr = err
		return m, nil
	}

	ctx, sub, listID, itemID := m.ctx, m.submitter, m.snap.ID, item.ID
	return m, func() tea.Msg {
		return SubmitResultMsg{ItemID: itemID, Err: sub.Submit(ctx, listID, itemID, req)}
	}
}

func (m *Model) closeForm(notice string) {
	if flow, ok := m.flows[m.active]; ok {
		flow.Cancel()
	}
	m.active = ""
	m.input.Reset()
	m.input.Blur()
	m.notice = notice
}

func (m *Model) flow(itemID string) *contribute.ItemUI {
	flow, ok := m.flows[itemID]
	if !ok {
		flow = &contribute.ItemUI{}
		m.flows[itemID] = flow
	}
	return flow
}

func (m Model) item(id string) (models.PublicItem, bool) {
	for _, it := range m.snap.Items {
		if it.ID == id {
			return it, true
		}
	}
	return models.PublicItem{}, false
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.snap.Title))
	b.WriteString("\n")
	if banner := m.state.Banner(); banner != "" {
		style := bannerStyle
		if m.state == channel.StateDisconnected {
			style = offlineStyle
		}
		b.WriteString(style.Render(banner))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.snap.Items) == 0 {
		b.WriteString(mutedStyle.Render("This wishlist is empty."))
		b.WriteString("\n")
	}
	for i, item := range m.snap.Items {
		b.WriteString(m.renderItem(i, item))
		if item.ID == m.active {
			b.WriteString(m.renderForm(item))
		}
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(successStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) renderItem(i int, item models.PublicItem) string {
	prefix := "  "
	if i == m.cursor {
		prefix = cursorStyle.Render(">") + " "
	}

	var b strings.Builder
	b.WriteString(prefix + item.Title + "\n")

	contributors := fmt.Sprintf("%d contributors", item.ContributorsCount)
	if item.ContributorsCount == 1 {
		contributors = "1 contributor"
	}
	if item.Price == nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("    %s collected · %s · price unknown", FormatMoney(item.ReservedTotal), contributors)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(mutedStyle.Render(fmt.Sprintf("    %s of %s · %s", FormatMoney(item.ReservedTotal), FormatMoney(*item.Price), contributors)))
	b.WriteString("\n    ")
	b.WriteString(m.bar.ViewAs(fundedRatio(item)))
	if item.FullyReserved() {
		b.WriteString("  " + reservedTag.Render("Fully reserved"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderForm(item models.PublicItem) string {
	flow := m.flow(item.ID)

	var lines []string
	switch flow.Phase(item) {
	case contribute.PhaseSelectingAction:
		var opts []string
		if rem, ok := item.Remaining(); ok {
			opts = append(opts, fmt.Sprintf("f  reserve the rest (%s)", FormatMoney(rem)))
		}
		if item.AllowContributions {
			opts = append(opts, "c  contribute an amount")
		}
		lines = append(lines, opts...)
	case contribute.PhaseEnteringDetails:
		if flow.Full() {
			rem, _ := item.Remaining()
			lines = append(lines, fmt.Sprintf("Reserve %s for %s?", item.Title, FormatMoney(rem)))
		} else {
			lines = append(lines, m.input.View())
			if rem, ok := item.Remaining(); ok {
				lines = append(lines, mutedStyle.Render("up to "+FormatMoney(rem)))
			}
		}
	case contribute.PhaseSubmitting:
		lines = append(lines, "Sending…")
	}
	if flow.LastErr != nil {
		lines = append(lines, errorStyle.Render(describe(flow.LastErr)))
	}
	if len(lines) == 0 {
		return ""
	}
	return formStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m Model) help() string {
	if m.active == "" {
		return "↑/↓ move · enter reserve or contribute · q quit"
	}
	item, _ := m.item(m.active)
	switch m.flow(m.active).Phase(item) {
	case contribute.PhaseEnteringDetails:
		return "enter confirm · esc cancel"
	case contribute.PhaseSubmitting:
		return "waiting for the list…"
	}
	return "esc cancel"
}

func fundedRatio(item models.PublicItem) float64 {
	if item.Price == nil || *item.Price <= 0 {
		return 0
	}
	r := float64(item.ReservedTotal) / float64(*item.Price)
	return min(r, 1)
}

// describe turns contribution errors into something a guest can act on.
func describe(err error) string {
	var exceeds *contribute.ExceedsRemainingError
	var rejected *contribute.RejectedError
	switch {
	case errors.As(err, &exceeds):
		return fmt.Sprintf("Only %s is left to fund.", FormatMoney(exceeds.Remaining))
	case errors.As(err, &rejected):
		return rejected.Error()
	case errors.Is(err, contribute.ErrFullyReserved):
		return "This item is already fully reserved."
	case errors.Is(err, contribute.ErrClosed):
		return "The session has ended."
	}
	return err.Error()
}
