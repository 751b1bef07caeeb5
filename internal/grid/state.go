package grid

import (
	"fmt"
	"strings"
	"sync"

	"mlgrid/pkg/api"
)

// GridStateMachine owns the transient per-session UI state: the selection
// set, the single active edit session, the new-row draft, and the add-column
// draft. It operates purely on the current SchemaStore/RecordStore snapshot
// and caches nothing of its own.
type GridStateMachine struct {
	mu sync.Mutex

	selection map[string]struct{}

	editId    string
	editDraft map[string]string

	newRow map[string]string

	composingColumn bool
	columnDraft     string
}

func NewGridStateMachine() *GridStateMachine {
	return &GridStateMachine{
		selection: make(map[string]struct{}),
		newRow:    make(map[string]string),
	}
}

// --- selection ---

// ToggleSelect flips membership of one record id.
func (g *GridStateMachine) ToggleSelect(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.selection[id]; ok {
		delete(g.selection, id)
	} else {
		g.selection[id] = struct{}{}
	}
}

// ToggleSelectAll is all-or-nothing: when every loaded id is selected the
// set clears, otherwise every loaded id becomes selected. The check is
// strict size equality against the loaded record count, not "add missing".
func (g *GridStateMachine) ToggleSelectAll(loadedIds []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.selection) == len(loadedIds) {
		g.selection = make(map[string]struct{})
		return
	}
	g.selection = make(map[string]struct{}, len(loadedIds))
	for _, id := range loadedIds {
		g.selection[id] = struct{}{}
	}
}

func (g *GridStateMachine) Selected(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.selection[id]
	return ok
}

func (g *GridStateMachine) SelectionSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.selection)
}

// SelectedInOrder filters the given id order down to the selected ones,
// preserving order. Bulk operations iterate this, keeping per-id ordering
// deterministic.
func (g *GridStateMachine) SelectedInOrder(loadedIds []string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.selection))
	for _, id := range loadedIds {
		if _, ok := g.selection[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// IntersectSelection drops selected ids that are no longer loaded. Called
// after every RecordStore reload.
func (g *GridStateMachine) IntersectSelection(loadedIds []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	valid := make(map[string]struct{}, len(loadedIds))
	for _, id := range loadedIds {
		valid[id] = struct{}{}
	}
	for id := range g.selection {
		if _, ok := valid[id]; !ok {
			delete(g.selection, id)
		}
	}

	// An edit session on a record that vanished has nothing to save into.
	if g.editId != "" {
		if _, ok := valid[g.editId]; !ok {
			g.editId = ""
			g.editDraft = nil
		}
	}
}

// --- edit session ---

// StartEdit opens an edit session on the record, seeding the draft from the
// record's current values across all schema columns. Starting an edit while
// another is active silently replaces the active session.
func (g *GridStateMachine) StartEdit(record api.Record, columns []string) {
	draft := make(map[string]string, len(columns))
	for _, col := range columns {
		draft[col] = displayString(record.Data[col])
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.editId = record.Id
	g.editDraft = draft
}

// SetEditField updates one draft cell of the active edit session; a no-op
// when nothing is being edited.
func (g *GridStateMachine) SetEditField(column, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editId == "" {
		return
	}
	g.editDraft[column] = value
}

// ActiveEdit returns the edited record id and a copy of the draft.
func (g *GridStateMachine) ActiveEdit() (string, map[string]string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editId == "" {
		return "", nil, false
	}
	draft := make(map[string]string, len(g.editDraft))
	for k, v := range g.editDraft {
		draft[k] = v
	}
	return g.editId, draft, true
}

// CancelEdit discards the draft without any network call.
func (g *GridStateMachine) CancelEdit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.editId = ""
	g.editDraft = nil
}

// --- new-row draft ---

func (g *GridStateMachine) SetNewRowField(column, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.newRow[column] = value
}

func (g *GridStateMachine) NewRowDraft() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	draft := make(map[string]string, len(g.newRow))
	for k, v := range g.newRow {
		draft[k] = v
	}
	return draft
}

func (g *GridStateMachine) ClearNewRow() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.newRow = make(map[string]string)
}

// --- add-column draft ---

// StartColumnDraft enters the composing state with an empty name.
func (g *GridStateMachine) StartColumnDraft() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.composingColumn = true
	g.columnDraft = ""
}

func (g *GridStateMachine) SetColumnDraft(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.composingColumn {
		return
	}
	g.columnDraft = name
}

func (g *GridStateMachine) ColumnDraft() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.columnDraft, g.composingColumn
}

// CancelColumnDraft discards the draft (the Escape path).
func (g *GridStateMachine) CancelColumnDraft() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.composingColumn = false
	g.columnDraft = ""
}

// CommitColumnDraft leaves the composing state and returns the trimmed name.
// An empty trimmed name commits to nothing: ok=false, no intent issued.
func (g *GridStateMachine) CommitColumnDraft() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.composingColumn {
		return "", false
	}
	g.composingColumn = false
	name := strings.TrimSpace(g.columnDraft)
	g.columnDraft = ""
	if name == "" {
		return "", false
	}
	return name, true
}

// Reset clears all transient state. Fired when the dataset itself is
// replaced (upload, table creation, column mutation), since every draft is
// keyed by a column set that no longer exists.
func (g *GridStateMachine) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selection = make(map[string]struct{})
	g.editId = ""
	g.editDraft = nil
	g.newRow = make(map[string]string)
	g.composingColumn = false
	g.columnDraft = ""
}

// displayString renders a cell value the way the grid shows it. JSON numbers
// arrive as float64; integral values drop the trailing ".0" that %v would
// keep.
func displayString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
