package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelflow/internal/template"
)

func TestStore_AddRemove(t *testing.T) {
	s := NewStore(2)

	a := s.AddTask()
	b := s.AddTask()
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.Len(t, a.Values, 2)

	require.NoError(t, s.RemoveTask(b.ID))
	c := s.AddTask()
	assert.Equal(t, 3, c.ID, "removed ids are never reused")

	gen := s.Generation()
	require.NoError(t, s.RemoveTask(b.ID), "removing twice is a no-op")
	assert.Equal(t, gen, s.Generation())
	assert.Equal(t, 2, s.Len())

	assert.ErrorIs(t, s.RemoveTask(99), ErrTaskNotFound)
	assert.ErrorIs(t, s.RemoveTask(0), ErrTaskNotFound)
}

func TestStore_SetValue(t *testing.T) {
	s := NewStore(2)
	task := s.AddTask()

	require.NoError(t, s.SetFileType(task.ID, 1, template.FileImage))
	require.NoError(t, s.SetValue(task.ID, 1, template.Value{Content: "cat.png"}))
	require.NoError(t, s.SetValue(task.ID, 1, template.Value{Content: "cat.png"}))

	got, err := s.Task(task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Values[0])
	assert.Equal(t, &template.Value{Content: "cat.png", FileType: template.FileImage}, got.Values[1])

	t.Run("Errors Do Not Mutate", func(t *testing.T) {
		gen := s.Generation()
		assert.ErrorIs(t, s.SetValue(99, 0, template.Value{Content: "x"}), ErrTaskNotFound)
		assert.ErrorIs(t, s.SetValue(task.ID, 2, template.Value{Content: "x"}), ErrIndexOutOfRange)
		assert.ErrorIs(t, s.SetFileType(task.ID, -1, template.FileVideo), ErrIndexOutOfRange)
		assert.ErrorIs(t, s.SetValue(task.ID, 1, template.Value{Content: "x", FileType: "pdf"}), template.ErrUnknownFileType)
		assert.ErrorIs(t, s.SetValue(task.ID, 1, template.Value{Carousel: &template.CarouselContent{}}), template.ErrEmptyCarousel)
		assert.Equal(t, gen, s.Generation())

		got, err := s.Task(task.ID)
		require.NoError(t, err)
		assert.Equal(t, "cat.png", got.Values[1].Content)
	})

	t.Run("File Type Is Canonicalized", func(t *testing.T) {
		require.NoError(t, s.SetValue(task.ID, 0, template.Value{Content: "clip", FileType: "Video"}))
		got, err := s.Task(task.ID)
		require.NoError(t, err)
		assert.Equal(t, template.FileVideo, got.Values[0].FileType)
	})
}

func TestStore_TasksIsSnapshot(t *testing.T) {
	s := NewStore(1)
	task := s.AddTask()
	require.NoError(t, s.SetValue(task.ID, 0, template.Value{Content: "original"}))

	snap := s.Tasks()
	snap[0].Values[0].Content = "mutated"

	got, err := s.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Values[0].Content)
}

func TestStore_Replace(t *testing.T) {
	s := NewStore(2)
	first := s.AddTask()

	err := s.Replace([]DraftTask{
		{ID: first.ID, Values: template.Values{{Content: "kept"}}},
		{Values: template.Values{nil, {Content: "new"}}},
	})
	require.NoError(t, err)

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Len(t, tasks[0].Values, 2)
	assert.Equal(t, "kept", tasks[0].Values[0].Content)
	assert.Equal(t, 2, tasks[1].ID)
	assert.Equal(t, "new", tasks[1].Values[1].Content)

	t.Run("Unknown Id Rejected", func(t *testing.T) {
		gen := s.Generation()
		err := s.Replace([]DraftTask{{ID: 42}})
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.Equal(t, gen, s.Generation())
		assert.Len(t, s.Tasks(), 2)
	})

	t.Run("Clear Keeps Id Sequence", func(t *testing.T) {
		s.Clear()
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, 3, s.AddTask().ID)
	})
}

func TestStore_GuardedWrites(t *testing.T) {
	s := NewStore(1)
	s.AddTask()
	tasks, gen := s.Snapshot()
	require.Len(t, tasks, 1)

	s.AddTask()
	assert.ErrorIs(t, s.ReplaceIf(gen, nil), ErrStale)
	assert.False(t, s.ClearIf(gen))
	assert.Equal(t, 2, s.Len())

	_, gen = s.Snapshot()
	require.NoError(t, s.ReplaceIf(gen, []DraftTask{{Values: template.Values{{Content: "x"}}}}))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.ClearIf(s.Generation()))
	assert.Equal(t, 0, s.Len())
}
