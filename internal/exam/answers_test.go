package exam

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuestions() []Question {
	return []Question{
		{ID: "1", Text: "2+2?", Choices: []Choice{{ID: "10", Text: "4"}, {ID: "11", Text: "5"}}},
		{ID: "2", Text: "Sky color?", Choices: []Choice{{ID: "20", Text: "Blue"}, {ID: "21", Text: "Green"}}},
		{ID: "3", Text: "Capital of France?", Choices: []Choice{{ID: "30", Text: "Paris"}, {ID: "31", Text: "Lyon"}}},
	}
}

func TestAnswerStoreSetIsIdempotent(t *testing.T) {
	store := NewAnswerStore(sampleQuestions())

	require.NoError(t, store.Set("1", "10"))
	require.NoError(t, store.Set("1", "10"))

	assert.Equal(t, 1, store.Count())
	got, ok := store.Get("1")
	assert.True(t, ok)
	assert.Equal(t, "10", got)
}

func TestAnswerStoreOverwriteCountsQuestionOnce(t *testing.T) {
	store := NewAnswerStore(sampleQuestions())

	require.NoError(t, store.Set("2", "20"))
	require.NoError(t, store.Set("2", "21"))

	got, _ := store.Get("2")
	assert.Equal(t, "21", got)
	assert.Equal(t, 1, store.Count())
}

func TestAnswerStoreRejectsForeignChoice(t *testing.T) {
	store := NewAnswerStore(sampleQuestions())

	err := store.Set("1", "20")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidChoice))

	err = store.Set("missing", "10")
	assert.ErrorIs(t, err, ErrInvalidChoice)

	assert.Zero(t, store.Count())
	assert.False(t, store.IsAnswered("1"))
}

func TestAnswerStoreExportFollowsQuestionOrder(t *testing.T) {
	store := NewAnswerStore(sampleQuestions())
	require.NoError(t, store.Set("3", "30"))
	require.NoError(t, store.Set("1", "11"))

	assert.Equal(t, []Answer{
		{Question: "1", Choice: "11"},
		{Question: "3", Choice: "30"},
	}, store.Export())
}

func TestAnswerStoreResetClearsSelections(t *testing.T) {
	store := NewAnswerStore(sampleQuestions())
	require.NoError(t, store.Set("1", "10"))
	require.NoError(t, store.Set("2", "20"))

	store.Reset()

	assert.Zero(t, store.Count())
	assert.Empty(t, store.Export())
	_, ok := store.Get("1")
	assert.False(t, ok)
}

func TestAnswerStoreRestoreDropsInvalidEntries(t *testing.T) {
	store := NewAnswerStore(sampleQuestions())

	restored := store.Restore(map[string]string{
		"1":       "10",
		"2":       "30",
		"unknown": "10",
	})

	assert.Equal(t, 1, restored)
	assert.Equal(t, map[string]string{"1": "10"}, store.Snapshot())
}

func TestAnswerStoreSnapshotIsACopy(t *testing.T) {
	store := NewAnswerStore(sampleQuestions())
	require.NoError(t, store.Set("1", "10"))

	snapshot := store.Snapshot()
	snapshot["1"] = "11"

	got, _ := store.Get("1")
	assert.Equal(t, "10", got)
}
