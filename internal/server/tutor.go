package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tutordomain "github.com/tutorbase/tutorbase/internal/tutor/domain"
	"github.com/tutorbase/tutorbase/pkg/db/pagination"
)

type createTutorRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Subjects        string `json:"subjects"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
}

// @Summary      Create Tutor
// @Description  Register a tutor with an hourly rate
// @Tags         tutors
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body createTutorRequest true "Create Tutor Request"
// @Success      200  {object}  tutordomain.Tutor
// @Router       /tutors [post]
func (s *Server) CreateTutor(c *gin.Context) {
	var req createTutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tutorSvc.Create(c.Request.Context(), tutordomain.CreateTutorRequest{
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.TrimSpace(req.Email),
		Subjects:        strings.TrimSpace(req.Subjects),
		HourlyRateCents: req.HourlyRateCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Tutors
// @Description  List registered tutors
// @Tags         tutors
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        page_token  query     string  false  "Page Token"
// @Param        page_size   query     int     false  "Page Size"
// @Success      200  {object}  tutordomain.ListTutorResponse
// @Router       /tutors [get]
func (s *Server) ListTutors(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tutorSvc.List(c.Request.Context(), tutordomain.ListTutorRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Tutor
// @Description  Get tutor by ID
// @Tags         tutors
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Tutor ID"
// @Success      200  {object}  tutordomain.Tutor
// @Router       /tutors/{id} [get]
func (s *Server) GetTutor(c *gin.Context) {
	resp, err := s.tutorSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateTutorRateRequest struct {
	HourlyRateCents int64 `json:"hourly_rate_cents"`
}

// @Summary      Update Tutor Rate
// @Description  Change a tutor's hourly rate; booked lessons keep their snapshotted rate
// @Tags         tutors
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id       path  string                  true  "Tutor ID"
// @Param        request  body  updateTutorRateRequest  true  "Update Rate Request"
// @Success      200  {object}  tutordomain.Tutor
// @Router       /tutors/{id}/rate [patch]
func (s *Server) UpdateTutorRate(c *gin.Context) {
	var req updateTutorRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tutorSvc.UpdateRate(c.Request.Context(), tutordomain.UpdateTutorRateRequest{
		TutorID:         c.Param("id"),
		HourlyRateCents: req.HourlyRateCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := c.Param("id")
		_ = s.auditSvc.AuditLog(c.Request.Context(), "api_key", actorFromContext(c), "tutor.update_rate", "tutor", &targetID, map[string]any{
			"hourly_rate_cents": req.HourlyRateCents,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
