package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tactus/player"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type tickMsg time.Time

type doneMsg struct{ err error }

type playModel struct {
	p        *player.Player
	done     chan error
	err      error
	finished bool
}

func runTUI(p *player.Player) error {
	done := make(chan error, 1)
	go func() {
		done <- p.Play(context.Background())
	}()

	m := playModel{p: p, done: done}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		p.AbortPlay()
		<-done
		return err
	}
	if fm, ok := final.(playModel); ok {
		return fm.err
	}
	return nil
}

func (m playModel) Init() tea.Cmd {
	return tea.Batch(m.waitDone(), uiTick())
}

func uiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m playModel) waitDone() tea.Cmd {
	return func() tea.Msg {
		return doneMsg{err: <-m.done}
	}
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.p.AbortPlay()
		case "s":
			// Skip ahead to the next bar boundary.
			st := m.p.Structure()
			cur := m.p.CurrentTick()
			target := (cur/st.TicksPerBar + 1) * st.TicksPerBar
			m.p.SkipToTick(target)
		}
		return m, nil

	case tickMsg:
		return m, uiTick()

	case doneMsg:
		m.err = msg.err
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m playModel) View() string {
	if m.finished {
		return ""
	}
	st := m.p.Structure()
	tick := m.p.CurrentTick()
	bar := tick/st.TicksPerBar + 1
	beat := tick%st.TicksPerBar/st.TicksPerBeat + 1
	status := fmt.Sprintf("bar %d/%d  beat %d  tick %d/%d  %.1f BPM",
		bar, st.Bars(), beat, tick, st.TotalTicks, float64(m.p.Tempo())/1000)

	return titleStyle.Render("tactus") + "\n" +
		statusStyle.Render(status) + "\n" +
		helpStyle.Render("s: skip to next bar   q: stop") + "\n"
}
