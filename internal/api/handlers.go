package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/middleware"
	"github.com/moca-trajectory-engine/internal/service"
	"github.com/moca-trajectory-engine/internal/trajectory"
)

type createPatientRequest struct {
	service.PatientDetails
	Assessments []domain.Assessment `json:"mocaTests"`
}

// scoringStatus tells the caller whether the returned trajectory reflects the
// latest history. A stale trajectory never fails the request.
type scoringStatus struct {
	Source domain.ScoringSource `json:"source"`
	Stale  bool                 `json:"stale"`
	Error  string               `json:"error,omitempty"`
}

type mutationResponse struct {
	Patient  *domain.Patient `json:"patient"`
	Warnings []string        `json:"warnings,omitempty"`
	Scoring  scoringStatus   `json:"scoring"`
}

type visitPrediction struct {
	Index           int      `json:"index"`
	Date            string   `json:"date"`
	TotalScore      int      `json:"totalScore"`
	PredictedRating *float64 `json:"predictedRating,omitempty"`
}

type trajectoryResponse struct {
	PatientID  string            `json:"patientId"`
	Trajectory domain.Trajectory `json:"trajectory"`
	Visits     []visitPrediction `json:"visits"`
}

const scoringUnavailable = "scoring unavailable"

func newMutationResponse(result *service.MutationResult) mutationResponse {
	status := scoringStatus{
		Source: result.Outcome.Source,
		Stale:  result.Outcome.Stale(),
	}
	// Scorer details stay in the server log.
	if result.Outcome.Err != nil {
		status.Error = scoringUnavailable
	}
	return mutationResponse{
		Patient:  result.Patient,
		Warnings: result.Advisories,
		Scoring:  status,
	}
}

func (s *Server) handleListPatients(c *gin.Context) {
	patients, err := s.patients.ListPatients(c.Request.Context(), middleware.DoctorID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": patients, "count": len(patients)})
}

func (s *Server) handleCreatePatient(c *gin.Context) {
	var req createPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, "Invalid request body", err)
		return
	}

	result, err := s.patients.CreatePatient(c.Request.Context(), middleware.DoctorID(c), req.PatientDetails, req.Assessments)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMutationResponse(result))
}

func (s *Server) handleGetPatient(c *gin.Context) {
	patient, err := s.patients.GetPatient(c.Request.Context(), middleware.DoctorID(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

func (s *Server) handleUpdatePatient(c *gin.Context) {
	var details service.PatientDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		s.respondBadRequest(c, "Invalid request body", err)
		return
	}

	result, err := s.patients.UpdatePatient(c.Request.Context(), middleware.DoctorID(c), c.Param("id"), details)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMutationResponse(result))
}

func (s *Server) handleDeletePatient(c *gin.Context) {
	if err := s.patients.DeletePatient(c.Request.Context(), middleware.DoctorID(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListAssessments(c *gin.Context) {
	patient, err := s.patients.GetPatient(c.Request.Context(), middleware.DoctorID(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mocaTests": patient.Assessments})
}

func (s *Server) handleAddAssessment(c *gin.Context) {
	var a domain.Assessment
	if err := c.ShouldBindJSON(&a); err != nil {
		s.respondBadRequest(c, "Invalid request body", err)
		return
	}

	result, err := s.patients.AddAssessment(c.Request.Context(), middleware.DoctorID(c), c.Param("id"), a)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMutationResponse(result))
}

func (s *Server) handleUpdateAssessment(c *gin.Context) {
	index, ok := s.indexParam(c)
	if !ok {
		return
	}
	var update map[string]json.RawMessage
	if err := c.ShouldBindJSON(&update); err != nil {
		s.respondBadRequest(c, "Invalid request body", err)
		return
	}
	body, err := json.Marshal(update)
	if err != nil {
		s.respondBadRequest(c, "Invalid request body", err)
		return
	}

	result, err := s.patients.UpdateAssessment(c.Request.Context(), middleware.DoctorID(c), c.Param("id"), index, body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMutationResponse(result))
}

func (s *Server) handleDeleteAssessment(c *gin.Context) {
	index, ok := s.indexParam(c)
	if !ok {
		return
	}

	result, err := s.patients.DeleteAssessment(c.Request.Context(), middleware.DoctorID(c), c.Param("id"), index)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMutationResponse(result))
}

// handleGetTrajectory returns the aggregate plus per-visit predictions in
// chronological order.
func (s *Server) handleGetTrajectory(c *gin.Context) {
	patient, err := s.patients.GetPatient(c.Request.Context(), middleware.DoctorID(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	sorted, order := trajectory.SortChronologically(patient.Assessments)
	visits := make([]visitPrediction, len(sorted))
	for i, a := range sorted {
		visits[i] = visitPrediction{
			Index:           order[i],
			Date:            a.Date,
			TotalScore:      a.TotalScore,
			PredictedRating: a.PredictedRating,
		}
	}

	c.JSON(http.StatusOK, trajectoryResponse{
		PatientID:  patient.ID,
		Trajectory: patient.Trajectory,
		Visits:     visits,
	})
}

func (s *Server) handleRecompute(c *gin.Context) {
	result, err := s.patients.Recompute(c.Request.Context(), middleware.DoctorID(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMutationResponse(result))
}

func (s *Server) handleRecomputeAll(c *gin.Context) {
	summary, err := s.patients.RecomputeAll(c.Request.Context(), middleware.DoctorID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.respondBadRequest(c, domain.ErrInvalidAssessmentIndex.Error(), err)
		return 0, false
	}
	return index, true
}

func (s *Server) respondBadRequest(c *gin.Context, message string, err error) {
	s.logger.WithError(err).WithField("correlation_id", middleware.GetCorrelationID(c)).Debug(message)
	c.JSON(http.StatusBadRequest, gin.H{
		"error":          message,
		"correlation_id": middleware.GetCorrelationID(c),
	})
}

// respondError maps service errors onto HTTP statuses. Internal errors are
// logged and never echoed to the client.
func (s *Server) respondError(c *gin.Context, err error) {
	correlationID := middleware.GetCorrelationID(c)

	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          validationErr.Error(),
			"field":          validationErr.Field,
			"correlation_id": correlationID,
		})
	case errors.Is(err, domain.ErrInvalidAssessmentIndex):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          err.Error(),
			"correlation_id": correlationID,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":          "Patient not found",
			"correlation_id": correlationID,
		})
	default:
		s.logger.WithError(err).WithField("correlation_id", correlationID).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":          "Internal server error",
			"correlation_id": correlationID,
		})
	}
}
