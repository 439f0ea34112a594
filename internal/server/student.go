package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	studentdomain "github.com/tutorbase/tutorbase/internal/student/domain"
	"github.com/tutorbase/tutorbase/pkg/db/pagination"
)

type createParentRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// @Summary      Create Parent
// @Description  Register the billed guardian for one or more students
// @Tags         students
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body createParentRequest true "Create Parent Request"
// @Success      200  {object}  studentdomain.Parent
// @Router       /parents [post]
func (s *Server) CreateParent(c *gin.Context) {
	var req createParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.studentSvc.CreateParent(c.Request.Context(), studentdomain.CreateParentRequest{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createStudentRequest struct {
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
	Level    string `json:"level"`
	School   string `json:"school"`
}

// @Summary      Create Student
// @Description  Enroll a student under a parent
// @Tags         students
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body createStudentRequest true "Create Student Request"
// @Success      200  {object}  studentdomain.Student
// @Router       /students [post]
func (s *Server) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.studentSvc.CreateStudent(c.Request.Context(), studentdomain.CreateStudentRequest{
		ParentID: strings.TrimSpace(req.ParentID),
		Name:     strings.TrimSpace(req.Name),
		Level:    strings.TrimSpace(req.Level),
		School:   strings.TrimSpace(req.School),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Students
// @Description  List enrolled students
// @Tags         students
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        parent_id   query     string  false  "Parent ID"
// @Param        page_token  query     string  false  "Page Token"
// @Param        page_size   query     int     false  "Page Size"
// @Success      200  {object}  studentdomain.ListStudentResponse
// @Router       /students [get]
func (s *Server) ListStudents(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ParentID string `form:"parent_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.studentSvc.ListStudents(c.Request.Context(), studentdomain.ListStudentRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		ParentID:  strings.TrimSpace(query.ParentID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Student
// @Description  Get student by ID
// @Tags         students
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Student ID"
// @Success      200  {object}  studentdomain.Student
// @Router       /students/{id} [get]
func (s *Server) GetStudent(c *gin.Context) {
	resp, err := s.studentSvc.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
