package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_CountProbesConsecutivePapers(t *testing.T) {
	c := writeExamFiles(t, 4)
	assert.Equal(t, 4, c.Count())
	// Cached on second call.
	assert.Equal(t, 4, c.Count())
}

func TestCatalog_CountEmptyDirIsOne(t *testing.T) {
	c := NewCatalog(t.TempDir(), t.TempDir())
	assert.Equal(t, 1, c.Count())
}

func TestCatalog_PickRandomInRange(t *testing.T) {
	c := writeExamFiles(t, 3)
	for range 50 {
		id := c.PickRandom()
		assert.GreaterOrEqual(t, id, 1)
		assert.LessOrEqual(t, id, 3)
	}
}

func TestCatalog_PickPreferUnseen(t *testing.T) {
	c := writeExamFiles(t, 3)
	seen := map[int]float64{1: 7.0, 3: 5.5}
	for range 20 {
		assert.Equal(t, 2, c.PickPreferUnseen(seen))
	}
}

func TestCatalog_PickPreferUnseenAllSeen(t *testing.T) {
	c := writeExamFiles(t, 2)
	seen := map[int]float64{1: 7.0, 2: 8.0}
	for range 20 {
		id := c.PickPreferUnseen(seen)
		assert.GreaterOrEqual(t, id, 1)
		assert.LessOrEqual(t, id, 2)
	}
}

func TestCatalog_Paths(t *testing.T) {
	c := NewCatalog("/data/dethi", "/data/huongdancham")
	assert.Equal(t, "/data/dethi/2.docx", c.ExamPath(2))
	assert.Equal(t, "/data/huongdancham/2.docx", c.KeyPath(2))
}
