package uithread

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// TasksReadyMsg tells a Bubble Tea model that the loop has queued tasks.
// The model must call Drain from Update and then re-issue WaitForTaskCmd.
type TasksReadyMsg struct {
	Loop *Loop
}

// LoopStoppedMsg is delivered once the loop has been stopped.
type LoopStoppedMsg struct{}

// WaitForTaskCmd waits until l has work and reports it to the program.
// Tasks then run on the program's Update goroutine, which becomes the UI
// goroutine for everything bound to l.
func WaitForTaskCmd(l *Loop) tea.Cmd {
	return func() tea.Msg {
		if l == nil {
			return nil
		}
		for {
			if l.Pending() > 0 {
				return TasksReadyMsg{Loop: l}
			}
			// wake may be stale when the queue was drained after it was set
			select {
			case <-l.wake:
			case <-l.done:
				return LoopStoppedMsg{}
			}
		}
	}
}

// HandleMsg drains l when msg is its TasksReadyMsg and returns the command
// that waits for the next batch. It returns (nil, false) for other messages.
func HandleMsg(ctx context.Context, l *Loop, msg tea.Msg) (tea.Cmd, bool) {
	ready, ok := msg.(TasksReadyMsg)
	if !ok || ready.Loop != l {
		return nil, false
	}
	l.Drain(ctx)
	return WaitForTaskCmd(l), true
}
