package grid_test

import (
	"testing"

	"mlgrid/internal/grid"
	"mlgrid/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleSelect(t *testing.T) {
	state := grid.NewGridStateMachine()

	state.ToggleSelect("a")
	assert.True(t, state.Selected("a"))
	assert.Equal(t, 1, state.SelectionSize())

	state.ToggleSelect("a")
	assert.False(t, state.Selected("a"))
	assert.Equal(t, 0, state.SelectionSize())
}

func TestToggleSelectAll(t *testing.T) {
	state := grid.NewGridStateMachine()
	ids := []string{"a", "b", "c"}

	// Partial selection: toggle-all selects everything.
	state.ToggleSelect("a")
	state.ToggleSelectAll(ids)
	assert.Equal(t, 3, state.SelectionSize())

	// Full selection: toggle-all clears.
	state.ToggleSelectAll(ids)
	assert.Equal(t, 0, state.SelectionSize())
}

func TestToggleSelectAllTwiceRestoresEmpty(t *testing.T) {
	state := grid.NewGridStateMachine()
	ids := []string{"a", "b"}

	state.ToggleSelectAll(ids)
	state.ToggleSelectAll(ids)
	assert.Equal(t, 0, state.SelectionSize())
	assert.False(t, state.Selected("a"))
}

func TestSelectedInOrder(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.ToggleSelect("c")
	state.ToggleSelect("a")

	assert.Equal(t, []string{"a", "c"}, state.SelectedInOrder([]string{"a", "b", "c"}))
}

func TestIntersectSelection(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.ToggleSelect("a")
	state.ToggleSelect("gone")

	state.IntersectSelection([]string{"a", "b"})
	assert.True(t, state.Selected("a"))
	assert.False(t, state.Selected("gone"))
	assert.Equal(t, 1, state.SelectionSize())
}

func TestIntersectSelectionDropsOrphanedEdit(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.StartEdit(api.Record{Id: "gone", Data: map[string]any{"x": 1.0}}, []string{"x"})

	state.IntersectSelection([]string{"other"})
	_, _, ok := state.ActiveEdit()
	assert.False(t, ok)
}

func TestStartEditSeedsDraft(t *testing.T) {
	state := grid.NewGridStateMachine()
	record := api.Record{Id: "r1", Data: map[string]any{
		"name":  "alice",
		"age":   30.0,
		"score": 91.5,
	}}

	state.StartEdit(record, []string{"name", "age", "score", "notes"})

	id, draft, ok := state.ActiveEdit()
	require.True(t, ok)
	assert.Equal(t, "r1", id)
	assert.Equal(t, "alice", draft["name"])
	assert.Equal(t, "30", draft["age"]) // integral floats drop the ".0"
	assert.Equal(t, "91.5", draft["score"])
	assert.Equal(t, "", draft["notes"]) // column with no value yet
}

func TestStartEditReplacesActiveSession(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.StartEdit(api.Record{Id: "r1", Data: map[string]any{"x": "a"}}, []string{"x"})
	state.SetEditField("x", "changed")

	state.StartEdit(api.Record{Id: "r2", Data: map[string]any{"x": "b"}}, []string{"x"})

	id, draft, ok := state.ActiveEdit()
	require.True(t, ok)
	assert.Equal(t, "r2", id)
	assert.Equal(t, "b", draft["x"])
}

func TestSetEditFieldWithoutSession(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.SetEditField("x", "v") // no-op, must not panic

	_, _, ok := state.ActiveEdit()
	assert.False(t, ok)
}

func TestCancelEdit(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.StartEdit(api.Record{Id: "r1", Data: map[string]any{"x": "a"}}, []string{"x"})

	state.CancelEdit()
	_, _, ok := state.ActiveEdit()
	assert.False(t, ok)
}

func TestActiveEditReturnsCopy(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.StartEdit(api.Record{Id: "r1", Data: map[string]any{"x": "a"}}, []string{"x"})

	_, draft, ok := state.ActiveEdit()
	require.True(t, ok)
	draft["x"] = "mutated"

	_, fresh, _ := state.ActiveEdit()
	assert.Equal(t, "a", fresh["x"])
}

func TestNewRowDraft(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.SetNewRowField("name", "alice")
	state.SetNewRowField("age", "30")

	draft := state.NewRowDraft()
	assert.Equal(t, map[string]string{"name": "alice", "age": "30"}, draft)

	state.ClearNewRow()
	assert.Empty(t, state.NewRowDraft())
}

func TestColumnDraftLifecycle(t *testing.T) {
	state := grid.NewGridStateMachine()

	// Typing before the draft opens goes nowhere.
	state.SetColumnDraft("ignored")
	_, composing := state.ColumnDraft()
	assert.False(t, composing)

	state.StartColumnDraft()
	state.SetColumnDraft("  notes  ")

	name, ok := state.CommitColumnDraft()
	require.True(t, ok)
	assert.Equal(t, "notes", name)

	// Commit closes the draft; a second commit has nothing to give.
	_, ok = state.CommitColumnDraft()
	assert.False(t, ok)
}

func TestColumnDraftBlankCommit(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.StartColumnDraft()
	state.SetColumnDraft("   ")

	_, ok := state.CommitColumnDraft()
	assert.False(t, ok)

	_, composing := state.ColumnDraft()
	assert.False(t, composing)
}

func TestColumnDraftCancel(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.StartColumnDraft()
	state.SetColumnDraft("notes")
	state.CancelColumnDraft()

	_, ok := state.CommitColumnDraft()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	state := grid.NewGridStateMachine()
	state.ToggleSelect("a")
	state.StartEdit(api.Record{Id: "r1", Data: map[string]any{"x": "a"}}, []string{"x"})
	state.SetNewRowField("x", "v")
	state.StartColumnDraft()
	state.SetColumnDraft("c")

	state.Reset()

	assert.Equal(t, 0, state.SelectionSize())
	_, _, editOk := state.ActiveEdit()
	assert.False(t, editOk)
	assert.Empty(t, state.NewRowDraft())
	_, composing := state.ColumnDraft()
	assert.False(t, composing)
}
