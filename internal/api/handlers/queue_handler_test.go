package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-recon/backend/internal/queue"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/config"
)

func newQueueApp(t *testing.T) (*fiber.App, *queue.Manager, *sqlite.Client) {
	t.Helper()
	db, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	m := queue.NewManager(db, queue.NewBroker(), config.QueueConfig{BulkApproveFloor: 0.90, RetentionDays: 90})
	h := NewQueueHandler(m)

	app := fiber.New()
	app.Get("/queue", h.ListEntries)
	app.Get("/queue/:id", h.GetEntry)
	app.Post("/queue/:id/approve", h.ApproveEntry)
	app.Post("/queue/:id/reject", h.RejectEntry)
	app.Post("/queue/bulk-approve", h.BulkApprove)

	return app, m, db
}

func seedLinkEntry(t *testing.T, m *queue.Manager, db *sqlite.Client) int64 {
	t.Helper()
	recID, err := db.InsertRawRecord(&models.RawRecord{RawInput: "Mario Rossi <mario.rossi@acme.it>"})
	require.NoError(t, err)
	identID, err := db.InsertIdentity(&models.Identity{Name: "Mario Rossi", PrimaryEmail: "mario.rossi@acme.it", Active: true})
	require.NoError(t, err)

	qid, err := m.Enqueue(&models.QueueEntry{
		QueueType:  models.QueueLink,
		SourceRef:  recID,
		TargetRef:  &identID,
		Confidence: 0.95,
	})
	require.NoError(t, err)
	return qid
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestListEntriesReturnsPending(t *testing.T) {
	app, m, db := newQueueApp(t)
	seedLinkEntry(t, m, db)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/queue", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])
}

func TestGetEntryNotFound(t *testing.T) {
	app, _, _ := newQueueApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/queue/999", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetEntryReturnsDetail(t *testing.T) {
	app, m, db := newQueueApp(t)
	qid := seedLinkEntry(t, m, db)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/queue/%d", qid), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotNil(t, body["entry"])
	assert.NotNil(t, body["record"])
}

func TestApproveRequiresActorID(t *testing.T) {
	app, m, db := newQueueApp(t)
	qid := seedLinkEntry(t, m, db)

	resp := postJSON(t, app, fmt.Sprintf("/queue/%d/approve", qid), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApproveAppliesEntry(t *testing.T) {
	app, m, db := newQueueApp(t)
	qid := seedLinkEntry(t, m, db)

	resp := postJSON(t, app, fmt.Sprintf("/queue/%d/approve", qid), map[string]any{"actor_id": "reviewer-1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, string(models.StatusApplied), body["status"])
}

func TestApproveReviewedEntryConflicts(t *testing.T) {
	app, m, db := newQueueApp(t)
	qid := seedLinkEntry(t, m, db)

	resp := postJSON(t, app, fmt.Sprintf("/queue/%d/approve", qid), map[string]any{"actor_id": "reviewer-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, fmt.Sprintf("/queue/%d/approve", qid), map[string]any{"actor_id": "reviewer-2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestApproveMissingEntryNotFound(t *testing.T) {
	app, _, _ := newQueueApp(t)

	resp := postJSON(t, app, "/queue/999/approve", map[string]any{"actor_id": "reviewer-1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRejectThenApproveConflicts(t *testing.T) {
	app, m, db := newQueueApp(t)
	qid := seedLinkEntry(t, m, db)

	resp := postJSON(t, app, fmt.Sprintf("/queue/%d/reject", qid), map[string]any{
		"actor_id": "reviewer-1",
		"reason":   "wrong person",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, fmt.Sprintf("/queue/%d/approve", qid), map[string]any{"actor_id": "reviewer-1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestBulkApproveReportsApplied(t *testing.T) {
	app, m, db := newQueueApp(t)
	seedLinkEntry(t, m, db)

	resp := postJSON(t, app, "/queue/bulk-approve", map[string]any{
		"actor_id":       "reviewer-1",
		"min_confidence": 0.90,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["applied"])
	assert.Equal(t, float64(1), body["total"])
}
