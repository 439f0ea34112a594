package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	lessondomain "github.com/tutorbase/tutorbase/internal/lesson/domain"
	"github.com/tutorbase/tutorbase/pkg/db/pagination"
)

type createLessonRequest struct {
	StudentID       string    `json:"student_id"`
	TutorID         string    `json:"tutor_id"`
	Subject         string    `json:"subject"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// @Summary      Create Lesson
// @Description  Book a lesson; the tutor's current rate is snapshotted onto it
// @Tags         lessons
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body createLessonRequest true "Create Lesson Request"
// @Success      200  {object}  lessondomain.Lesson
// @Router       /lessons [post]
func (s *Server) CreateLesson(c *gin.Context) {
	var req createLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lessonSvc.Create(c.Request.Context(), lessondomain.CreateLessonRequest{
		StudentID:       strings.TrimSpace(req.StudentID),
		TutorID:         strings.TrimSpace(req.TutorID),
		Subject:         strings.TrimSpace(req.Subject),
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Lessons
// @Description  List lessons with optional filters
// @Tags         lessons
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        student_id  query     string  false  "Student ID"
// @Param        tutor_id    query     string  false  "Tutor ID"
// @Param        status      query     string  false  "Status"
// @Param        page_token  query     string  false  "Page Token"
// @Param        page_size   query     int     false  "Page Size"
// @Success      200  {object}  lessondomain.ListLessonResponse
// @Router       /lessons [get]
func (s *Server) ListLessons(c *gin.Context) {
	var query struct {
		pagination.Pagination
		StudentID string `form:"student_id"`
		TutorID   string `form:"tutor_id"`
		Status    string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lessonSvc.List(c.Request.Context(), lessondomain.ListLessonRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		StudentID: strings.TrimSpace(query.StudentID),
		TutorID:   strings.TrimSpace(query.TutorID),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Lesson
// @Description  Get lesson by ID
// @Tags         lessons
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Lesson ID"
// @Success      200  {object}  lessondomain.Lesson
// @Router       /lessons/{id} [get]
func (s *Server) GetLesson(c *gin.Context) {
	resp, err := s.lessonSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Complete Lesson
// @Description  Mark a scheduled lesson as delivered, making it billable
// @Tags         lessons
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Lesson ID"
// @Success      200  {object}  lessondomain.Lesson
// @Router       /lessons/{id}/complete [post]
func (s *Server) CompleteLesson(c *gin.Context) {
	resp, err := s.lessonSvc.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Cancel Lesson
// @Description  Cancel a scheduled lesson
// @Tags         lessons
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Lesson ID"
// @Success      200  {object}  lessondomain.Lesson
// @Router       /lessons/{id}/cancel [post]
func (s *Server) CancelLesson(c *gin.Context) {
	resp, err := s.lessonSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
