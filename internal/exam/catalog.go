// Package exam holds the proctored exam session: the exam paper
// catalog and the timed anti-cheat state machine around one attempt.
package exam

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
)

// probeSlack is how far past the expected count the catalog keeps
// probing for papers.
const probeSlack = 10

// DefaultExamCount is the number of bundled exam papers.
const DefaultExamCount = 5

// Catalog locates exam papers (1.docx..N.docx) and their grading
// guides on disk. The probe result is cached for the process lifetime.
type Catalog struct {
	examDir string
	keyDir  string

	mu     sync.Mutex
	cached int
}

// NewCatalog creates a catalog over examDir (papers) and keyDir
// (grading guides).
func NewCatalog(examDir, keyDir string) *Catalog {
	return &Catalog{examDir: examDir, keyDir: keyDir}
}

// ExamPath returns the path of exam paper id.
func (c *Catalog) ExamPath(id int) string {
	return filepath.Join(c.examDir, fmt.Sprintf("%d.docx", id))
}

// KeyPath returns the path of the grading guide for exam id.
func (c *Catalog) KeyPath(id int) string {
	return filepath.Join(c.keyDir, fmt.Sprintf("%d.docx", id))
}

// Count probes 1.docx upward and returns how many consecutive papers
// exist, at least 1. The result is cached.
func (c *Catalog) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached > 0 {
		return c.cached
	}

	count := 0
	for i := 1; i <= DefaultExamCount+probeSlack; i++ {
		if _, err := os.Stat(c.ExamPath(i)); err != nil {
			break
		}
		count = i
	}
	if count < 1 {
		count = 1
	}
	c.cached = count
	return c.cached
}

// PickRandom returns a random exam id in [1, Count()].
func (c *Catalog) PickRandom() int {
	return rand.IntN(c.Count()) + 1
}

// PickPreferUnseen returns a random exam id, preferring papers the
// student has no graded submission for yet. seen maps exam id to best
// score; with every paper seen it falls back to a plain random pick.
func (c *Catalog) PickPreferUnseen(seen map[int]float64) int {
	n := c.Count()
	unseen := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		if _, ok := seen[i]; !ok {
			unseen = append(unseen, i)
		}
	}
	if len(unseen) == 0 {
		return c.PickRandom()
	}
	return unseen[rand.IntN(len(unseen))]
}
