package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/application/command"
	"github.com/finsight-hub/finsight-progression/internal/application/query"
	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/memory"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

const (
	testLearnerID = "8d4f9a2b1c3e5f708192a3b4c5d6e7f8"
	testSessionID = "6f1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"
	testAPIKey    = "internal-key-1"
)

type fixedAnonymizer struct{ id shared.LearnerID }

func (a fixedAnonymizer) Pseudonymize(string) shared.LearnerID { return a.id }

type serverFixture struct {
	router        http.Handler
	notifications *memory.NotificationRepository
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	opts := logger.DefaultOptions()
	opts.Output = io.Discard
	log := logger.New(opts)

	eventLog := memory.NewEventLogStore(0)
	startMarks := memory.NewStartMarkStore()
	progressStore := memory.NewProgressStore()
	notifications := memory.NewNotificationRepository()
	engine := stage.NewEngine(stage.DefaultEngineConfig())

	trackCmd := command.NewTrackInteractionHandler(
		eventLog,
		startMarks,
		fixedAnonymizer{id: shared.LearnerID(testLearnerID)},
		nil,
		nil,
		log,
		command.DefaultTrackInteractionHandlerConfig(),
	)
	updateCmd := command.NewUpdateMetricsHandler(progressStore, nil, log)

	assessmentQuery := query.NewGetStageAssessmentHandler(
		eventLog, engine, nil, nil, log,
		query.DefaultGetStageAssessmentHandlerConfig(),
	)
	contentQuery := query.NewGetContentConfigHandler(assessmentQuery, log, true)
	stageProgressQuery := query.NewGetStageProgressHandler(assessmentQuery)
	progressQuery := query.NewGetLearnerProgressHandler(progressStore, notifications, log)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.EnableMetrics = false
	cfg.APIKeys = []string{testAPIKey}

	server := NewServer(cfg, Dependencies{
		TrackInteractionHandler:   trackCmd,
		UpdateMetricsHandler:      updateCmd,
		GetStageAssessmentHandler: assessmentQuery,
		GetContentConfigHandler:   contentQuery,
		GetStageProgressHandler:   stageProgressQuery,
		GetLearnerProgressHandler: progressQuery,
		Notifications:             notifications,
		Logger:                    log,
	})

	return &serverFixture{
		router:        server.Router(),
		notifications: notifications,
	}
}

func (f *serverFixture) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestServerHealthEndpoint(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerTrackInteraction(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/interactions/end", map[string]interface{}{
		"user_id":          "user-42",
		"session_id":       testSessionID,
		"interaction_type": "analysis_completion",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var result struct {
		Tracked   bool   `json:"Tracked"`
		LearnerID string `json:"LearnerID"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Tracked)
	assert.Equal(t, testLearnerID, result.LearnerID)
}

func TestServerTrackInteractionRejectsBadType(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/interactions/end", map[string]interface{}{
		"user_id":          "user-42",
		"session_id":       testSessionID,
		"interaction_type": "keyboard_smash",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerAssessmentRequiresSession(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/learners/"+testLearnerID+"/assessment", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/learners/"+testLearnerID+"/assessment?session_id="+testSessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerLearnerProgressEmptyState(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/learners/"+testLearnerID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dto struct {
		HasActivity bool `json:"has_activity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.False(t, dto.HasActivity)
}

func TestServerMarkNotificationRead(t *testing.T) {
	f := newServerFixture(t)

	learnerID, err := shared.NewLearnerID(testLearnerID)
	require.NoError(t, err)

	n, err := notification.NewNotification(
		notification.NotificationID(uuid.NewString()),
		learnerID,
		notification.NotificationTypeBadgeUnlocked,
		"Награда",
		"Награда получена.",
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, f.notifications.Save(context.Background(), n))

	rec := f.do(t, http.MethodPost,
		"/api/v1/learners/"+testLearnerID+"/notifications/"+n.ID.String()+"/read", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An unknown id maps to 404.
	rec = f.do(t, http.MethodPost,
		"/api/v1/learners/"+testLearnerID+"/notifications/"+uuid.NewString()+"/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerInternalMetricsRequiresAPIKey(t *testing.T) {
	f := newServerFixture(t)
	target := "/api/v1/internal/learners/" + testLearnerID + "/metrics"
	body := map[string]interface{}{"analysis_completed": true}

	rec := f.do(t, http.MethodPost, target, body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("X-API-Key", testAPIKey)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}

func TestServerRateLimiting(t *testing.T) {
	opts := logger.DefaultOptions()
	opts.Output = io.Discard
	log := logger.New(opts)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	cfg.EnableMetrics = false

	server := NewServer(cfg, Dependencies{Logger: log})
	router := server.Router()

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/live", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
