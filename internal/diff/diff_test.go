package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDiff_DetectsAddedAndRemovedLines(t *testing.T) {
	old := "line1\nline2\nline3\n"
	updated := "line1\nline2-changed\nline3\n"

	fd := ComputeDiff("a.txt", "a.txt", old, updated)
	lineCount := 0
	for _, h := range fd.Hunks {
		lineCount += len(h.Lines)
	}
	assert.Greater(t, lineCount, 0)

	var added, removed int
	for _, h := range fd.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)
}

func TestComputeDiff_NewFile(t *testing.T) {
	fd := ComputeDiff("a.txt", "a.txt", "", "content\n")
	assert.True(t, fd.IsNew)
}

func TestComputeDiff_CachesIdenticalPairs(t *testing.T) {
	e := NewEngine()
	old, updated := "a\nb\n", "a\nc\n"
	fd1 := e.ComputeDiff("x.txt", "x.txt", old, updated)
	fd2 := e.ComputeDiff("y.txt", "y.txt", old, updated)
	assert.Equal(t, len(fd1.Hunks), len(fd2.Hunks))
}

func TestRender_ProducesUnifiedDiffHeader(t *testing.T) {
	fd := ComputeDiff("a.txt", "a.txt", "old\n", "new\n")
	rendered := fd.Render()
	assert.Contains(t, rendered, "--- a.txt")
	assert.Contains(t, rendered, "+++ a.txt")
}
