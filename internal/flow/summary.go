package flow

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// TaskSummary is the final record of one task run.
type TaskSummary struct {
	Name     string
	State    State
	Attempts int
	Duration time.Duration
	Err      error
}

// Summary describes a finished flow run. Tasks are in submission order.
type Summary struct {
	Flow     string
	RunID    string
	State    State
	Started  time.Time
	Duration time.Duration
	Tasks    []TaskSummary
}

func (f *Flow) summary(start time.Time) Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Summary{
		Flow:     f.name,
		RunID:    f.runID,
		Started:  start,
		Duration: time.Since(start),
		Tasks:    make([]TaskSummary, 0, len(f.runs)),
	}
	for _, r := range f.runs {
		var d time.Duration
		if !r.started.IsZero() && !r.ended.IsZero() {
			d = r.ended.Sub(r.started)
		}
		s.Tasks = append(s.Tasks, TaskSummary{
			Name:     r.name,
			State:    r.state,
			Attempts: r.attempts,
			Duration: d,
			Err:      r.err,
		})
	}
	return s
}

// Count returns the number of tasks in state st.
func (s Summary) Count(st State) int {
	n := 0
	for _, t := range s.Tasks {
		if t.State == st {
			n++
		}
	}
	return n
}

// Task returns the summary of the task run called name.
func (s Summary) Task(name string) (TaskSummary, bool) {
	for _, t := range s.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskSummary{}, false
}

// Render writes the summary as a table.
func (s Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "flow %s (run %s): %s in %s\n", s.Flow, s.RunID, s.State, s.Duration.Round(time.Millisecond))
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"task", "state", "attempts", "duration", "error"})
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, t := range s.Tasks {
		msg := ""
		if t.Err != nil {
			msg = t.Err.Error()
		}
		tw.Append([]string{t.Name, t.State.String(), strconv.Itoa(t.Attempts), t.Duration.Round(time.Millisecond).String(), msg})
	}
	tw.Render()
}
