package csvimport

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelflow/internal/template"
)

func placeholders(names ...string) []template.Placeholder {
	out := make([]template.Placeholder, len(names))
	for i, n := range names {
		out[i] = template.Placeholder{Type: template.TypeText, Index: i, Name: n}
	}
	return out
}

func TestImport_RoundTrip(t *testing.T) {
	rows, err := ReadRows(strings.NewReader("Name,Age\nAlice,30\nBob,25\n"))
	require.NoError(t, err)

	tasks, err := Import(rows, placeholders("Name", "Age"))
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "Alice", tasks[0].Values[0].Content)
	assert.Equal(t, "30", tasks[0].Values[1].Content)
	assert.Equal(t, "Bob", tasks[1].Values[0].Content)
	assert.Equal(t, "25", tasks[1].Values[1].Content)
	assert.Equal(t, template.FileDocument, tasks[1].Values[1].FileType)
	assert.Zero(t, tasks[0].ID)
}

func TestImport_ColumnMismatch(t *testing.T) {
	rows, err := ReadRows(strings.NewReader("A,B,C\n1,2,3\n"))
	require.NoError(t, err)

	tasks, err := Import(rows, placeholders("Name", "Age"))
	assert.Nil(t, tasks)

	var mismatch *ColumnMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 3, mismatch.Columns)
	assert.Equal(t, 2, mismatch.Placeholders)
	assert.Equal(t, []string{"A", "B", "C"}, mismatch.Header)
	assert.Equal(t, []string{"Name", "Age"}, mismatch.Names)
	assert.Contains(t, err.Error(), "3 columns")
	assert.Contains(t, err.Error(), "2 placeholders")
}

func TestImport_BlankHandling(t *testing.T) {
	input := "\xEF\xBB\xBFName,Age\n,,\nCarol,\n\n,41\n"
	rows, err := ReadRows(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "Name", rows[0][0], "byte order mark is stripped")

	tasks, err := Import(rows, placeholders("Name", "Age"))
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "Carol", tasks[0].Values[0].Content)
	assert.Nil(t, tasks[0].Values[1])
	assert.Nil(t, tasks[1].Values[0])
	assert.Equal(t, "41", tasks[1].Values[1].Content)
}

func TestImport_RaggedRows(t *testing.T) {
	rows, err := ReadRows(strings.NewReader("Name,Age\nDave\nEve,22,extra\n"))
	require.NoError(t, err)

	tasks, err := Import(rows, placeholders("Name", "Age"))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Nil(t, tasks[0].Values[1])
	assert.Equal(t, "22", tasks[1].Values[1].Content)
}

func TestReadRows_Malformed(t *testing.T) {
	_, err := ReadRows(strings.NewReader("Name,Age\n\"unterminated,1\n"))
	var readErr *ReadError
	assert.True(t, errors.As(err, &readErr))
}

func TestImport_Empty(t *testing.T) {
	_, err := Import(nil, placeholders("Name"))
	var readErr *ReadError
	assert.True(t, errors.As(err, &readErr))
}
