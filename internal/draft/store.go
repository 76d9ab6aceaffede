package draft

import (
	"errors"
	"fmt"
	"sync"

	"labelflow/internal/template"
)

var (
	ErrTaskNotFound    = errors.New("draft task not found")
	ErrIndexOutOfRange = errors.New("placeholder index out of range")
	ErrStale           = errors.New("draft tasks changed since snapshot")
)

// DraftTask is an operator-built bundle of placeholder values that has not
// been committed yet.
type DraftTask struct {
	ID     int             `json:"id"`
	Values template.Values `json:"values"`
}

func (t DraftTask) clone() DraftTask {
	return DraftTask{ID: t.ID, Values: t.Values.Clone()}
}

// Store holds the draft tasks of one session. Every value arena is sized to
// the template's placeholder count.
type Store struct {
	mu         sync.Mutex
	slots      int
	nextID     int
	generation uint64
	tasks      []DraftTask
}

func NewStore(placeholderCount int) *Store {
	return &Store{slots: placeholderCount, nextID: 1}
}

// Slots returns the number of placeholders each task holds values for.
func (s *Store) Slots() int {
	return s.slots
}

// AddTask appends an empty task with the next sequential id.
func (s *Store) AddTask() DraftTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := DraftTask{ID: s.nextID, Values: template.NewValues(s.slots)}
	s.nextID++
	s.tasks = append(s.tasks, t)
	s.generation++
	return t.clone()
}

// RemoveTask deletes a task. Removing an id this store issued earlier and
// already removed is a no-op.
func (s *Store) RemoveTask(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		if id > 0 && id < s.nextID {
			return nil
		}
		return fmt.Errorf("remove %d: %w", id, ErrTaskNotFound)
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.generation++
	return nil
}

// SetValue stores the value for a placeholder. The file type already chosen
// for the slot is kept when value leaves it empty. Unknown file types and
// empty carousels are rejected.
func (s *Store) SetValue(id, index int, value template.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.slot(id, index)
	if err != nil {
		return err
	}
	v := value.Clone()
	if err := v.Normalize(); err != nil {
		return fmt.Errorf("set value %d/%d: %w", id, index, err)
	}
	if prev := t.Values[index]; prev != nil && v.FileType == "" {
		v.FileType = prev.FileType
	}
	t.Values[index] = v
	s.generation++
	return nil
}

func (s *Store) SetFileType(id, index int, ft template.FileType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.slot(id, index)
	if err != nil {
		return err
	}
	if t.Values[index] == nil {
		t.Values[index] = &template.Value{}
	}
	t.Values[index].FileType = ft
	s.generation++
	return nil
}

// Tasks returns a deep copy of the current tasks in insertion order.
func (s *Store) Tasks() []DraftTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DraftTask, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.clone()
	}
	return out
}

func (s *Store) Task(id int) (DraftTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return DraftTask{}, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	return s.tasks[i].clone(), nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Replace swaps the whole collection in one step. Tasks with ID 0 get fresh
// ids; value arenas are resized to the store's slot count. Nothing is
// changed when an id is duplicated or was never issued by this store.
func (s *Store) Replace(tasks []DraftTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(tasks)
}

// ReplaceIf is Replace guarded by the generation a snapshot was taken at.
// It returns ErrStale when the store was mutated in between.
func (s *Store) ReplaceIf(generation uint64, tasks []DraftTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return ErrStale
	}
	return s.replace(tasks)
}

func (s *Store) replace(tasks []DraftTask) error {
	seen := make(map[int]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == 0 {
			continue
		}
		if t.ID < 0 || t.ID >= s.nextID || seen[t.ID] {
			return fmt.Errorf("replace with task %d: %w", t.ID, ErrTaskNotFound)
		}
		seen[t.ID] = true
	}

	next := make([]DraftTask, len(tasks))
	nextID := s.nextID
	for i, t := range tasks {
		c := DraftTask{ID: t.ID, Values: template.NewValues(s.slots)}
		if c.ID == 0 {
			c.ID = nextID
			nextID++
		}
		copy(c.Values, t.Values.Clone())
		next[i] = c
	}
	s.tasks = next
	s.nextID = nextID
	s.generation++
	return nil
}

// Clear drops every task. Ids are not reset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = nil
	s.generation++
}

// ClearIf clears the store only when it is still at generation.
func (s *Store) ClearIf(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.tasks = nil
	s.generation++
	return true
}

// Snapshot returns Tasks and Generation read under one lock.
func (s *Store) Snapshot() ([]DraftTask, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DraftTask, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.clone()
	}
	return out, s.generation
}

// Generation increases on every mutation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Store) find(id int) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) slot(id, index int) (*DraftTask, error) {
	i := s.find(id)
	if i < 0 {
		return nil, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	if index < 0 || index >= s.slots {
		return nil, fmt.Errorf("task %d index %d: %w", id, index, ErrIndexOutOfRange)
	}
	return &s.tasks[i], nil
}
