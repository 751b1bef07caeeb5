package grid

import (
	"context"
	"sync"

	"mlgrid/pkg/api"
)

// RecordStore holds the ordered row set for the current schema. Mutations
// are write-through: the store is never patched locally, callers reload
// after every mutating call.
type RecordStore struct {
	mu      sync.RWMutex
	client  *Client
	records []api.Record
}

func NewRecordStore(client *Client) *RecordStore {
	return &RecordStore{client: client}
}

// Load replaces the whole record set with the server's current view.
func (s *RecordStore) Load(ctx context.Context) error {
	records, err := s.client.ListRecords(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	return nil
}

// Records returns the rows in server order.
func (s *RecordStore) Records() []api.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Record(nil), s.records...)
}

// Ids returns the loaded record ids in order.
func (s *RecordStore) Ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.records))
	for i, rec := range s.records {
		ids[i] = rec.Id
	}
	return ids
}

// Get returns the loaded record with the given id.
func (s *RecordStore) Get(id string) (api.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.Id == id {
			return rec, true
		}
	}
	return api.Record{}, false
}

func (s *RecordStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Create submits a new row. The store is not patched; reload afterwards.
func (s *RecordStore) Create(ctx context.Context, draft map[string]string) error {
	_, err := s.client.CreateRecord(ctx, draftToData(draft))
	return err
}

// Update fully replaces a record's data mapping. Fields absent from the
// mapping are wiped server-side; edit sessions seed from the complete record
// so in practice every column is present.
func (s *RecordStore) Update(ctx context.Context, id string, fields map[string]string) error {
	_, err := s.client.UpdateRecord(ctx, id, draftToData(fields))
	return err
}

// Delete removes one row server-side.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	return s.client.DeleteRecord(ctx, id)
}

// BulkDeleteStatus reports the outcome for one id of a bulk delete.
type BulkDeleteStatus struct {
	Id  string
	Err error
}

// BulkDelete deletes the ids sequentially, in order, awaiting each. The loop
// does not short-circuit on error, so a failure at position N leaves 1..N-1
// deleted and still attempts N+1..end. The per-id outcomes come back so
// callers can report partial success.
func (s *RecordStore) BulkDelete(ctx context.Context, ids []string) []BulkDeleteStatus {
	statuses := make([]BulkDeleteStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, BulkDeleteStatus{Id: id, Err: s.client.DeleteRecord(ctx, id)})
	}
	return statuses
}

func draftToData(draft map[string]string) map[string]any {
	data := make(map[string]any, len(draft))
	for col, val := range draft {
		data[col] = val
	}
	return data
}
