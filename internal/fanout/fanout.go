package fanout

import (
	"encoding/json"
	"errors"
	"fmt"

	"labelflow/features/workforce"
	"labelflow/internal/draft"
	"labelflow/internal/template"
)

var (
	ErrNoDraftTasks       = errors.New("no draft tasks to commit")
	ErrInvalidRepeatCount = errors.New("repeat count must be at least 1")
	ErrNoWorkers          = errors.New("no workers match the assignment filter")
	ErrRepeatCountLocked  = errors.New("repeat count follows the worker filter while assigning to all workers")
)

// Record is a concrete task ready to be persisted.
type Record struct {
	Seq              int             `json:"seq"`
	DraftID          int             `json:"draftId"`
	TemplateID       string          `json:"templateId"`
	ProjectRef       string          `json:"projectRef"`
	Name             string          `json:"name"`
	Content          json.RawMessage `json:"content"`
	Timer            int             `json:"timer"`
	Reviewer         string          `json:"reviewer"`
	Type             string          `json:"type"`
	WorkerAssignment *string         `json:"workerAssignment"`
}

// Broadcast is a template record that an external consumer expands into one
// task per worker.
type Broadcast struct {
	Template Record             `json:"template"`
	Workers  []workforce.Worker `json:"workers"`
}

// Plan holds the output of one commit. Exactly one of Singles and Broadcasts
// is non-empty.
type Plan struct {
	Singles    []Record    `json:"singles"`
	Broadcasts []Broadcast `json:"broadcasts"`
}

// Size returns the number of records in the plan.
func (p *Plan) Size() int {
	return len(p.Singles) + len(p.Broadcasts)
}

type Options struct {
	ProjectRef  string
	Name        string
	Timer       int
	TaskType    string
	RepeatCount int
	Broadcast   bool
	Workers     []workforce.Worker
}

// BroadcastRepeatCount is the repeat count implied by broadcast mode.
func BroadcastRepeatCount(workers []workforce.Worker) int {
	return len(workers)
}

// Build expands draft tasks against tmpl. In repeat mode every task yields
// RepeatCount records named "<name> <n>" with n counting from 1 across the
// whole plan. In broadcast mode every task yields one template record paired
// with the worker list.
func Build(tasks []draft.DraftTask, tmpl *template.Template, opts Options) (*Plan, error) {
	if len(tasks) == 0 {
		return nil, ErrNoDraftTasks
	}

	plan := &Plan{}
	if opts.Broadcast {
		if len(opts.Workers) == 0 {
			return nil, ErrNoWorkers
		}
		workers := append([]workforce.Worker(nil), opts.Workers...)
		for i, t := range tasks {
			rec, err := newRecord(t, tmpl, opts, i, i+1)
			if err != nil {
				return nil, err
			}
			plan.Broadcasts = append(plan.Broadcasts, Broadcast{Template: rec, Workers: workers})
		}
		return plan, nil
	}

	if opts.RepeatCount < 1 {
		return nil, ErrInvalidRepeatCount
	}
	plan.Singles = make([]Record, 0, len(tasks)*opts.RepeatCount)
	seq := 0
	for _, t := range tasks {
		content, err := render(t, tmpl)
		if err != nil {
			return nil, err
		}
		for r := 0; r < opts.RepeatCount; r++ {
			plan.Singles = append(plan.Singles, record(t, tmpl, opts, content, seq, seq+1))
			seq++
		}
	}
	return plan, nil
}

func newRecord(t draft.DraftTask, tmpl *template.Template, opts Options, seq, n int) (Record, error) {
	content, err := render(t, tmpl)
	if err != nil {
		return Record{}, err
	}
	return record(t, tmpl, opts, content, seq, n), nil
}

func render(t draft.DraftTask, tmpl *template.Template) (json.RawMessage, error) {
	filled := template.Fill(tmpl.Nodes, t.Values, tmpl.Placeholders)
	content, err := template.Marshal(filled)
	if err != nil {
		return nil, fmt.Errorf("render draft %d: %w", t.ID, err)
	}
	return content, nil
}

func record(t draft.DraftTask, tmpl *template.Template, opts Options, content json.RawMessage, seq, n int) Record {
	return Record{
		Seq:        seq,
		DraftID:    t.ID,
		TemplateID: tmpl.ID,
		ProjectRef: opts.ProjectRef,
		Name:       fmt.Sprintf("%s %d", opts.Name, n),
		Content:    content,
		Timer:      opts.Timer,
		Type:       opts.TaskType,
	}
}
