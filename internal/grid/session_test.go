package grid_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	backend "mlgrid/internal/api"
	"mlgrid/internal/database"
	"mlgrid/internal/grid"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sampleCSV = "name,age,score\nalice,30,91.5\nbob,25,84\ncarol,41,77.25\n"

var declineAll = grid.ConfirmerFunc(func(string) bool { return false })

func newTestServer(t *testing.T) *httptest.Server {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	service := backend.NewBackendService(db)
	router := chi.NewRouter()
	service.AddRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func newTestSession(t *testing.T, confirm grid.Confirmer) *grid.Session {
	server := newTestServer(t)
	return grid.NewSession(server.URL, confirm)
}

func uploadSample(t *testing.T, session *grid.Session) {
	require.NoError(t, session.Upload(context.Background(), "data.csv", strings.NewReader(sampleCSV)))
}

func notifierText(t *testing.T, session *grid.Session) string {
	msg, ok := session.Notifier.Current()
	require.True(t, ok, "expected a live notifier message")
	return msg.Text
}

func TestRefreshAllWithoutDataset(t *testing.T) {
	session := newTestSession(t, nil)
	session.RefreshAll(context.Background())

	_, ok := session.Schema.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, session.Records.Count())
}

func TestUpload(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	schema, ok := session.Schema.Current()
	require.True(t, ok)
	assert.Equal(t, []string{"name", "age", "score"}, schema.Columns)
	assert.Equal(t, "score", schema.Target)
	// Feature columns are derived client-side: every column except the target.
	assert.Equal(t, []string{"name", "age"}, schema.FeatureColumns)

	assert.Equal(t, 3, session.Records.Count())
	assert.Equal(t, "Dataset uploaded successfully.", notifierText(t, session))
}

func TestUploadEmptyCSVSurfacesServerDetail(t *testing.T) {
	session := newTestSession(t, nil)

	err := session.Upload(context.Background(), "empty.csv", strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, "Uploaded CSV is empty", err.Error())
	assert.Equal(t, "Uploaded CSV is empty", notifierText(t, session))
}

func TestCreateTable(t *testing.T) {
	session := newTestSession(t, nil)

	err := session.CreateTable(context.Background(), []string{"", "  "})
	assert.ErrorIs(t, err, grid.ErrEmptyColumnName)

	require.NoError(t, session.CreateTable(context.Background(), []string{"a", " b "}))

	schema, ok := session.Schema.Current()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, schema.Columns)
	assert.Equal(t, 0, session.Records.Count())
}

func TestSubmitNewRowAppearsAfterReload(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	session.State.SetNewRowField("name", "dave")
	session.State.SetNewRowField("age", "52")
	require.NoError(t, session.SubmitNewRow(context.Background()))

	assert.Equal(t, 4, session.Records.Count())
	assert.Empty(t, session.State.NewRowDraft())

	records := session.Records.Records()
	last := records[len(records)-1]
	assert.Equal(t, "dave", last.Data["name"])
	assert.Equal(t, 52.0, last.Data["age"]) // numeric strings are typed server-side
}

func TestNewRowDraftClearedEvenOnFailure(t *testing.T) {
	session := newTestSession(t, nil)
	// No dataset: the create is rejected server-side.
	session.State.SetNewRowField("name", "dave")

	err := session.SubmitNewRow(context.Background())
	require.Error(t, err)
	assert.Empty(t, session.State.NewRowDraft())
}

func TestSaveEdit(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	id := session.Records.Ids()[0]
	require.True(t, session.StartEdit(id))
	session.State.SetEditField("name", "alicia")
	require.NoError(t, session.SaveEdit(context.Background()))

	_, _, editing := session.State.ActiveEdit()
	assert.False(t, editing)

	record, ok := session.Records.Get(id)
	require.True(t, ok)
	assert.Equal(t, "alicia", record.Data["name"])
	assert.Equal(t, 91.5, record.Data["score"]) // untouched fields survive
}

func TestStartEditUnknownRecord(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	assert.False(t, session.StartEdit("no-such-id"))
}

func TestDeleteRecordDeclined(t *testing.T) {
	session := newTestSession(t, declineAll)
	uploadSample(t, session)

	id := session.Records.Ids()[0]
	err := session.DeleteRecord(context.Background(), id)
	assert.ErrorIs(t, err, grid.ErrDeclined)
	assert.Equal(t, 3, session.Records.Count())
}

func TestDeleteRecord(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	id := session.Records.Ids()[0]
	require.NoError(t, session.DeleteRecord(context.Background(), id))

	assert.Equal(t, 2, session.Records.Count())
	_, ok := session.Records.Get(id)
	assert.False(t, ok)
}

func TestBulkDeleteSelected(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	ids := session.Records.Ids()
	session.State.ToggleSelect(ids[0])
	session.State.ToggleSelect(ids[2])

	statuses := session.BulkDeleteSelected(context.Background())
	require.Len(t, statuses, 2)
	for _, st := range statuses {
		assert.NoError(t, st.Err)
	}

	assert.Equal(t, 1, session.Records.Count())
	assert.Equal(t, 0, session.State.SelectionSize())
	assert.Equal(t, "Deleted 2 records.", notifierText(t, session))
}

func TestBulkDeleteNothingSelected(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	assert.Nil(t, session.BulkDeleteSelected(context.Background()))
	assert.Equal(t, 3, session.Records.Count())
}

func TestToggleSelectAllRoundTrip(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	ids := session.Records.Ids()
	session.State.ToggleSelectAll(ids)
	assert.Equal(t, len(ids), session.State.SelectionSize())

	session.State.ToggleSelectAll(ids)
	assert.Equal(t, 0, session.State.SelectionSize())
}

func TestAddColumnViaDraft(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	session.State.StartColumnDraft()
	session.State.SetColumnDraft(" notes ")
	require.NoError(t, session.CommitColumnDraft(context.Background()))

	schema, ok := session.Schema.Current()
	require.True(t, ok)
	assert.Contains(t, schema.Columns, "notes")
	assert.Equal(t, "Column 'notes' added.", notifierText(t, session))
}

func TestCommitBlankColumnDraftIsNoOp(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	session.State.StartColumnDraft()
	session.State.SetColumnDraft("   ")
	require.NoError(t, session.CommitColumnDraft(context.Background()))

	schema, _ := session.Schema.Current()
	assert.Len(t, schema.Columns, 3)
}

func TestDeleteColumnDeclined(t *testing.T) {
	session := newTestSession(t, declineAll)
	uploadSample(t, session)

	err := session.Columns.DeleteColumn(context.Background(), "age")
	assert.ErrorIs(t, err, grid.ErrDeclined)

	schema, _ := session.Schema.Current()
	assert.Contains(t, schema.Columns, "age")
}

func TestDeleteColumnResetsTransientState(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	session.State.ToggleSelect(session.Records.Ids()[0])
	session.State.SetNewRowField("age", "99")

	require.NoError(t, session.Columns.DeleteColumn(context.Background(), "age"))

	schema, ok := session.Schema.Current()
	require.True(t, ok)
	assert.NotContains(t, schema.Columns, "age")
	assert.Equal(t, 0, session.State.SelectionSize())
	assert.Empty(t, session.State.NewRowDraft())
}

func TestTrainAndPredict(t *testing.T) {
	session := newTestSession(t, nil)

	csv := "x,y\n"
	for i := 1; i <= 12; i++ {
		csv += fmt.Sprintf("%d,%d\n", i, 2*i)
	}
	require.NoError(t, session.Upload(context.Background(), "data.csv", strings.NewReader(csv)))

	require.NoError(t, session.Models.Train(context.Background()))

	result, ok := session.Models.Result()
	require.True(t, ok)
	assert.Equal(t, 12, result.Samples)
	assert.Len(t, result.Models, 3)
	assert.Equal(t, "Models trained on 12 samples.", notifierText(t, session))

	metrics, ok := session.Models.Metrics("linear")
	require.True(t, ok)
	assert.InDelta(t, 1.0, metrics.R2, 1e-6)

	require.NoError(t, session.Models.Predict(context.Background(), "linear", map[string]string{"x": "6"}))

	prediction, ok := session.Models.LastPrediction()
	require.True(t, ok)
	assert.InDelta(t, 12.0, prediction.Value, 1e-6)
	assert.Equal(t, "linear", prediction.ModelKey)
	assert.Equal(t, "y", prediction.Target)
}

func TestPredictInvalidFeatureValue(t *testing.T) {
	session := newTestSession(t, nil)
	require.NoError(t, session.Upload(context.Background(), "data.csv", strings.NewReader("x,y\n1,2\n2,4\n")))
	require.NoError(t, session.Models.Train(context.Background()))

	err := session.Models.Predict(context.Background(), "linear", map[string]string{"x": "abc"})
	require.Error(t, err)
	assert.Equal(t, "Invalid value for feature 'x'.", notifierText(t, session))

	_, ok := session.Models.LastPrediction()
	assert.False(t, ok)
}

func TestPredictEmptyInputCountsAsZero(t *testing.T) {
	session := newTestSession(t, nil)
	require.NoError(t, session.Upload(context.Background(), "data.csv", strings.NewReader("x,y\n1,3\n2,5\n3,7\n")))
	require.NoError(t, session.Models.Train(context.Background()))

	// y = 2x + 1; an empty input predicts at x = 0.
	require.NoError(t, session.Models.Predict(context.Background(), "linear", map[string]string{"x": ""}))

	prediction, ok := session.Models.LastPrediction()
	require.True(t, ok)
	assert.InDelta(t, 1.0, prediction.Value, 1e-6)
}

func TestPredictUntrainedModel(t *testing.T) {
	session := newTestSession(t, nil)
	uploadSample(t, session)

	err := session.Models.Predict(context.Background(), "linear", map[string]string{"name": "", "age": "1"})
	require.Error(t, err)
	assert.Equal(t, "Model 'linear' not trained yet", err.Error())
}

func TestUploadResetsModelState(t *testing.T) {
	session := newTestSession(t, nil)
	require.NoError(t, session.Upload(context.Background(), "data.csv", strings.NewReader("x,y\n1,2\n2,4\n")))
	require.NoError(t, session.Models.Train(context.Background()))

	_, ok := session.Models.Result()
	require.True(t, ok)

	uploadSample(t, session)
	_, ok = session.Models.Result()
	assert.False(t, ok)
	_, ok = session.Models.LastPrediction()
	assert.False(t, ok)
}

func TestDownload(t *testing.T) {
	session := newTestSession(t, nil)
	require.NoError(t, session.Upload(context.Background(), "data.csv", strings.NewReader("x,y\n1,2\n3,4\n")))

	payload, err := session.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x,y\n1,2\n3,4\n", string(payload))
}

func TestDownloadWithoutData(t *testing.T) {
	session := newTestSession(t, nil)

	_, err := session.Download(context.Background())
	require.Error(t, err)
	assert.Equal(t, "No data to download", err.Error())
}
