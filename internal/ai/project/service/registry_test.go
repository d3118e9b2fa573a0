package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Jamolkhon5/nexter/internal/models"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsOrganizing(7))
	_, ok := r.Mode(7)
	assert.False(t, ok)

	r.Register(7, ModeLocal, models.Message{Content: "hi"})
	assert.True(t, r.IsOrganizing(7))
	mode, ok := r.Mode(7)
	assert.True(t, ok)
	assert.Equal(t, ModeLocal, mode)

	greeting, ok := r.Greeting(7)
	assert.True(t, ok)
	assert.Equal(t, "hi", greeting.Content)

	assert.Equal(t, 1, r.AdvanceQuestion(7, 2))
	assert.Equal(t, 2, r.AdvanceQuestion(7, 2))
	assert.Equal(t, 2, r.AdvanceQuestion(7, 2))
	assert.Equal(t, 2, r.QuestionIndex(7))

	r.ResetQuestionIndex(7)
	assert.Equal(t, 0, r.QuestionIndex(7))
}

func TestRegistry_MarkSavedIsAtomic(t *testing.T) {
	r := NewRegistry()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.MarkSaved(3) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.True(t, r.Saved(3))

	r.ClearSaved(3)
	assert.False(t, r.Saved(3))
	assert.True(t, r.MarkSaved(3))
}

func TestRegistry_BeginStart(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.BeginStart(7))
	assert.False(t, r.BeginStart(7))
	assert.True(t, r.BeginStart(8))

	r.EndStart(7)
	assert.True(t, r.BeginStart(7))

	r.Register(7, ModeRemote, models.Message{Content: "hi"})
	r.EndStart(7)
	assert.False(t, r.BeginStart(7))
}
