package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/repository"
	"github.com/gin-gonic/gin"
)

// appointmentLookback keeps appointments that are already under way listed
// as upcoming so a consultation can still be linked to them.
const appointmentLookback = time.Hour

type errorResponse struct {
	Error string `json:"error"`
}

type transcriptRequest struct {
	Transcript string `json:"transcript" binding:"required"`
}

func (s *Server) handleCreateRecording(c *gin.Context) {
	var req recording.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rec, err := s.repo.Create(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("recording created", "id", rec.ID, "appointmentId", rec.AppointmentID)
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleListRecordings(c *gin.Context) {
	recs, err := s.repo.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	if recs == nil {
		recs = []recording.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) handleGetRecording(c *gin.Context) {
	rec, err := s.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleCompleteRecording(c *gin.Context) {
	var body recording.Completion
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rec, err := s.repo.Complete(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("recording completed", "id", rec.ID, "bytes", rec.FileSizeBytes)
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleSetTranscript(c *gin.Context) {
	var body transcriptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rec, err := s.repo.SetTranscript(c.Request.Context(), c.Param("id"), body.Transcript)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleUpcomingAppointments(c *gin.Context) {
	appts, err := s.repo.UpcomingAppointments(c.Request.Context(), s.now().Add(-appointmentLookback))
	if err != nil {
		s.fail(c, err)
		return
	}

	if appts == nil {
		appts = []recording.Appointment{}
	}
	c.JSON(http.StatusOK, appts)
}

func (s *Server) fail(c *gin.Context, err error) {
	var verr *repository.ValidationError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadyCompleted):
		status = http.StatusConflict
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(status, errorResponse{Error: err.Error()})
}
