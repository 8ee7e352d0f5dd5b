package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/application/command"
	"github.com/finsight-hub/finsight-progression/internal/application/query"
	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "FinSight Progression API",
		"version":     "v1",
		"description": "Adaptive learning progression engine for financial education",
		"endpoints": map[string]string{
			"health":        "/health",
			"track_start":   "/api/v1/interactions/start",
			"track_end":     "/api/v1/interactions/end",
			"assessment":    "/api/v1/learners/{id}/assessment",
			"content":       "/api/v1/learners/{id}/content",
			"progress":      "/api/v1/learners/{id}/progress",
			"badges":        "/api/v1/learners/{id}/badges",
			"notifications": "/api/v1/learners/{id}/notifications",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTION TRACKING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// trackInteractionRequest is the request body of the tracking endpoints.
type trackInteractionRequest struct {
	UserID    string                 `json:"user_id"`
	SessionID string                 `json:"session_id"`
	Type      string                 `json:"interaction_type"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
}

// handleInteractionStart handles POST /api/v1/interactions/start
func (s *Server) handleInteractionStart(w http.ResponseWriter, r *http.Request) {
	s.handleTrackInteraction(w, r, command.PhaseStart)
}

// handleInteractionEnd handles POST /api/v1/interactions/end
func (s *Server) handleInteractionEnd(w http.ResponseWriter, r *http.Request) {
	s.handleTrackInteraction(w, r, command.PhaseEnd)
}

func (s *Server) handleTrackInteraction(w http.ResponseWriter, r *http.Request, phase command.InteractionPhase) {
	if s.deps.TrackInteractionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Interaction tracking not configured")
		return
	}

	var req trackInteractionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", err.Error())
		return
	}

	cmd := command.TrackInteractionCommand{
		RawUserID:     req.UserID,
		SessionID:     req.SessionID,
		Type:          req.Type,
		Phase:         phase,
		Context:       req.Context,
		CorrelationID: getRequestID(r.Context()),
	}
	if req.Timestamp != nil {
		cmd.Timestamp = *req.Timestamp
	}

	if err := cmd.Validate(); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Invalid tracking request", err.Error())
		return
	}

	result, err := s.deps.TrackInteractionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to track interaction")
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT & CONTENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetAssessment handles GET /api/v1/learners/{id}/assessment
func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	learnerID, sessionID, ok := s.learnerSessionParams(w, r)
	if !ok {
		return
	}

	if s.deps.GetStageAssessmentHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Assessment handler not configured")
		return
	}

	q := query.GetStageAssessmentQuery{
		LearnerID:    learnerID,
		SessionID:    sessionID,
		ForceRefresh: getQueryParamBool(r, "refresh"),
	}

	result, err := s.deps.GetStageAssessmentHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to assess stage")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetContentConfig handles GET /api/v1/learners/{id}/content
func (s *Server) handleGetContentConfig(w http.ResponseWriter, r *http.Request) {
	learnerID, sessionID, ok := s.learnerSessionParams(w, r)
	if !ok {
		return
	}

	if s.deps.GetContentConfigHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Content handler not configured")
		return
	}

	q := query.GetContentConfigQuery{
		LearnerID:   learnerID,
		SessionID:   sessionID,
		CompanyName: getQueryParam(r, "company", ""),
	}

	result, err := s.deps.GetContentConfigHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to build content configuration")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStageProgress handles GET /api/v1/learners/{id}/stage-progress
func (s *Server) handleGetStageProgress(w http.ResponseWriter, r *http.Request) {
	learnerID, sessionID, ok := s.learnerSessionParams(w, r)
	if !ok {
		return
	}

	if s.deps.GetStageProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Stage progress handler not configured")
		return
	}

	q := query.GetStageProgressQuery{
		LearnerID: learnerID,
		SessionID: sessionID,
	}

	result, err := s.deps.GetStageProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to compute stage progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLearnerProgress handles GET /api/v1/learners/{id}/progress
func (s *Server) handleGetLearnerProgress(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	if s.deps.GetLearnerProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetLearnerProgressQuery{
		LearnerID:            learnerID,
		IncludeBadges:        true,
		IncludeNotifications: getQueryParamBool(r, "include_notifications"),
		NotificationLimit:    getQueryParamInt(r, "notification_limit", 10),
	}

	result, err := s.deps.GetLearnerProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to get learner progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetBadges handles GET /api/v1/learners/{id}/badges
func (s *Server) handleGetBadges(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	if s.deps.GetLearnerProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetLearnerProgressQuery{
		LearnerID:     learnerID,
		IncludeBadges: true,
	}

	result, err := s.deps.GetLearnerProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to get badges")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"learner_id": result.LearnerID,
		"badges":     result.Badges,
	})
}

// handleGetNotifications handles GET /api/v1/learners/{id}/notifications
func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	if s.deps.GetLearnerProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetLearnerProgressQuery{
		LearnerID:            learnerID,
		IncludeNotifications: true,
		NotificationLimit:    getQueryParamInt(r, "limit", 20),
	}

	result, err := s.deps.GetLearnerProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to get notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"learner_id":    result.LearnerID,
		"notifications": result.Notifications,
		"unread_count":  result.UnreadNotifications,
	})
}

// handleMarkNotificationRead handles POST /api/v1/learners/{id}/notifications/{notification_id}/read
func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	notificationID := r.PathValue("notification_id")
	if notificationID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Notification ID is required")
		return
	}

	if s.deps.Notifications == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Notifications not configured")
		return
	}

	err := s.deps.Notifications.MarkRead(r.Context(), notification.NotificationID(notificationID))
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to mark notification read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERNAL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// updateMetricsRequest is the request body of the internal metrics merge.
type updateMetricsRequest struct {
	AnalysisCompleted     bool               `json:"analysis_completed"`
	SkillImprovements     map[string]float64 `json:"skill_improvements,omitempty"`
	PatternPerformance    *float64           `json:"pattern_performance,omitempty"`
	ResearchQuality       *float64           `json:"research_quality,omitempty"`
	CommunityContribution *float64           `json:"community_contribution,omitempty"`
	SessionDuration       float64            `json:"session_duration,omitempty"`
	OccurredAt            *time.Time         `json:"occurred_at,omitempty"`
}

// handleUpdateMetrics handles POST /api/v1/internal/learners/{id}/metrics
func (s *Server) handleUpdateMetrics(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	if s.deps.UpdateMetricsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Metrics handler not configured")
		return
	}

	var req updateMetricsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", err.Error())
		return
	}

	cmd := command.UpdateMetricsCommand{
		LearnerID:             learnerID,
		AnalysisCompleted:     req.AnalysisCompleted,
		SkillImprovements:     req.SkillImprovements,
		PatternPerformance:    req.PatternPerformance,
		ResearchQuality:       req.ResearchQuality,
		CommunityContribution: req.CommunityContribution,
		SessionDuration:       req.SessionDuration,
	}
	if req.OccurredAt != nil {
		cmd.OccurredAt = *req.OccurredAt
	}

	if err := cmd.Validate(); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Invalid metrics delta", err.Error())
		return
	}

	result, err := s.deps.UpdateMetricsHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeHandlerError(w, r, err, "Failed to update metrics")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// learnerSessionParams extracts the learner id path value and required
// session_id query parameter.
func (s *Server) learnerSessionParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return "", "", false
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "session_id query parameter is required")
		return "", "", false
	}

	return learnerID, sessionID, true
}

// decodeJSONBody decodes the request body into dest, rejecting unknown noise.
func decodeJSONBody(r *http.Request, dest interface{}) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	}()

	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(dest)
}

// writeHandlerError maps application errors to HTTP responses.
func (s *Server) writeHandlerError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", message)
	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", message, err.Error())
	default:
		s.logger.Error(message,
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", message)
	}
}
