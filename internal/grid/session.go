package grid

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Session wires the stores, the grid state machine, the column controller,
// and the model orchestrator over one backend. All mutating operations
// terminate in RefreshAll: schema and records are refetched as a pair, never
// patched incrementally, because column mutations redefine the shape of
// every record.
type Session struct {
	Client   *Client
	Notifier *Notifier
	Schema   *SchemaStore
	Records  *RecordStore
	State    *GridStateMachine
	Columns  *ColumnMutationController
	Models   *ModelOrchestrator

	confirm Confirmer
}

func NewSession(baseURL string, confirm Confirmer) *Session {
	return NewSessionWithTTL(baseURL, confirm, DefaultMessageTTL)
}

func NewSessionWithTTL(baseURL string, confirm Confirmer, messageTTL time.Duration) *Session {
	if confirm == nil {
		confirm = AlwaysConfirm
	}

	client := NewClient(baseURL)
	notifier := NewNotifier(messageTTL)
	schema := NewSchemaStore(client)
	records := NewRecordStore(client)
	state := NewGridStateMachine()

	s := &Session{
		Client:   client,
		Notifier: notifier,
		Schema:   schema,
		Records:  records,
		State:    state,
		Models:   NewModelOrchestrator(client, schema, notifier),
		confirm:  confirm,
	}
	s.Columns = NewColumnMutationController(client, notifier, confirm, s.refreshAfterSchemaChange)
	return s
}

// RefreshAll refetches schema and records and intersects the selection with
// the new record set. The two loads are independent calls; between them the
// grid may transiently show rows against a stale column set.
func (s *Session) RefreshAll(ctx context.Context) {
	s.Schema.Load(ctx)
	if err := s.Records.Load(ctx); err != nil {
		s.Notifier.Error("Failed to load records.")
		return
	}
	s.State.IntersectSelection(s.Records.Ids())
}

// refreshAfterSchemaChange additionally drops all transient grid state:
// drafts keyed by the old column set are meaningless under the new one.
func (s *Session) refreshAfterSchemaChange(ctx context.Context) {
	s.State.Reset()
	s.RefreshAll(ctx)
}

// Upload replaces the whole dataset from a CSV stream. Any previous train
// result or prediction belongs to the old dataset and is discarded.
func (s *Session) Upload(ctx context.Context, filename string, file io.Reader) error {
	schema, err := s.Client.UploadDataset(ctx, filename, file)
	if err != nil {
		s.Notifier.Error(err.Error())
		return err
	}

	s.Schema.Replace(schema)
	s.Models.Reset()
	s.State.Reset()
	if err := s.Records.Load(ctx); err != nil {
		s.Notifier.Error("Failed to load records.")
		return err
	}

	s.Notifier.Ok("Dataset uploaded successfully.")
	return nil
}

// CreateTable starts an empty dataset from user-typed column names. Blank
// names are filtered locally; an all-blank list never reaches the network.
func (s *Session) CreateTable(ctx context.Context, columns []string) error {
	valid := make([]string, 0, len(columns))
	for _, col := range columns {
		if strings.TrimSpace(col) != "" {
			valid = append(valid, strings.TrimSpace(col))
		}
	}
	if len(valid) == 0 {
		return ErrEmptyColumnName
	}

	schema, err := s.Client.CreateEmptyDataset(ctx, valid)
	if err != nil {
		s.Notifier.Error(err.Error())
		return err
	}

	s.Schema.Replace(schema)
	s.Models.Reset()
	s.State.Reset()
	if err := s.Records.Load(ctx); err != nil {
		s.Notifier.Error("Failed to load records.")
		return err
	}

	s.Notifier.Ok("Table created.")
	return nil
}

// StartEdit opens an edit session seeded from the record's current values.
func (s *Session) StartEdit(id string) bool {
	record, ok := s.Records.Get(id)
	if !ok {
		return false
	}
	s.State.StartEdit(record, s.Schema.Columns())
	return true
}

// SaveEdit submits the active draft as a full record replacement, then ends
// the edit session whatever the outcome (failures surface via the Notifier).
func (s *Session) SaveEdit(ctx context.Context) error {
	id, draft, ok := s.State.ActiveEdit()
	if !ok {
		return nil
	}

	err := s.Records.Update(ctx, id, draft)
	s.State.CancelEdit()
	if err != nil {
		s.Notifier.Error(err.Error())
		return err
	}

	s.Notifier.Ok("Record updated.")
	s.RefreshAll(ctx)
	return nil
}

// SubmitNewRow creates a record from the new-row draft. Partial and empty
// drafts are accepted; the backend tolerates dynamically typed rows. The
// draft is cleared regardless of the outcome.
func (s *Session) SubmitNewRow(ctx context.Context) error {
	draft := s.State.NewRowDraft()
	err := s.Records.Create(ctx, draft)
	s.State.ClearNewRow()
	if err != nil {
		s.Notifier.Error(err.Error())
		return err
	}

	s.Notifier.Ok("Record created.")
	s.RefreshAll(ctx)
	return nil
}

// DeleteRecord removes one row after the destructive-action gate.
func (s *Session) DeleteRecord(ctx context.Context, id string) error {
	if !s.confirm.Confirm("Delete this record?") {
		return ErrDeclined
	}

	if err := s.Records.Delete(ctx, id); err != nil {
		s.Notifier.Error(err.Error())
		return err
	}

	s.Notifier.Ok("Record deleted.")
	s.RefreshAll(ctx)
	return nil
}

// BulkDeleteSelected deletes the selected rows sequentially in record order.
// The aggregate outcome goes to the Notifier; per-id statuses come back to
// the caller.
func (s *Session) BulkDeleteSelected(ctx context.Context) []BulkDeleteStatus {
	ids := s.State.SelectedInOrder(s.Records.Ids())
	if len(ids) == 0 {
		return nil
	}
	if !s.confirm.Confirm(fmt.Sprintf("Delete %d selected records?", len(ids))) {
		return nil
	}

	statuses := s.Records.BulkDelete(ctx, ids)

	failed := 0
	for _, st := range statuses {
		if st.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		s.Notifier.Error("Bulk delete failed.")
	} else {
		s.Notifier.Ok(fmt.Sprintf("Deleted %d records.", len(ids)))
	}

	s.RefreshAll(ctx)
	return statuses
}

// CommitColumnDraft is the Enter-key path of the add-column affordance: a
// blank draft is a no-op, otherwise the add-column intent fires.
func (s *Session) CommitColumnDraft(ctx context.Context) error {
	name, ok := s.State.CommitColumnDraft()
	if !ok {
		return nil
	}
	return s.Columns.AddColumn(ctx, name)
}

// Download fetches the dataset CSV bytes for saving; the content is not
// parsed client-side.
func (s *Session) Download(ctx context.Context) ([]byte, error) {
	payload, err := s.Client.DownloadCSV(ctx)
	if err != nil {
		s.Notifier.Error(err.Error())
		return nil, err
	}
	return payload, nil
}
