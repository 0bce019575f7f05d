package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorlink/mentorlink-api/internal/models"
	"github.com/mentorlink/mentorlink-api/internal/service"
	appErrors "github.com/mentorlink/mentorlink-api/pkg/errors"
	"github.com/mentorlink/mentorlink-api/pkg/response"
)

type assignmentService interface {
	ListUnassignedStudents(ctx context.Context, teacherID string) ([]models.AccountInfo, error)
	ListAssignedStudents(ctx context.Context, teacherID string) ([]models.AssignedAccount, error)
	ListAssignedTeachers(ctx context.Context, studentID string) ([]models.AssignedAccount, error)
	AssignStudents(ctx context.Context, teacherID string, req service.AssignStudentsRequest, meta models.LoginRequest) (*service.AssignStudentsResult, error)
	UnassignStudent(ctx context.Context, teacherID, studentID string, meta models.LoginRequest) error
}

type rosterExporter interface {
	Roster(ctx context.Context, teacherID, format string) (*service.ExportFile, error)
}

// AssignmentHandler exposes teacher/student assignment endpoints.
type AssignmentHandler struct {
	service assignmentService
	exports rosterExporter
}

func NewAssignmentHandler(svc assignmentService, exports rosterExporter) *AssignmentHandler {
	return &AssignmentHandler{service: svc, exports: exports}
}

// ListUnassignedStudents godoc
// @Summary List unassigned students
// @Description Students not yet assigned to the authenticated teacher, oldest first
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teachers/me/students/unassigned [get]
func (h *AssignmentHandler) ListUnassignedStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	students, err := h.service.ListUnassignedStudents(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, students, nil)
}

// ListAssignedStudents godoc
// @Summary List assigned students
// @Description Students currently assigned to the authenticated teacher, oldest assignment first
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teachers/me/students [get]
func (h *AssignmentHandler) ListAssignedStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	students, err := h.service.ListAssignedStudents(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, students, nil)
}

// ListAssignedTeachers godoc
// @Summary List assigned teachers
// @Description Teachers the authenticated student is assigned to
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/me/teachers [get]
func (h *AssignmentHandler) ListAssignedTeachers(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	teachers, err := h.service.ListAssignedTeachers(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, teachers, nil)
}

// AssignStudents godoc
// @Summary Assign students
// @Description Assign one or more students to the authenticated teacher
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.AssignStudentsRequest true "Student IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teachers/me/students [post]
func (h *AssignmentHandler) AssignStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AssignStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	result, err := h.service.AssignStudents(c.Request.Context(), claims.UserID, req, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// UnassignStudent godoc
// @Summary Unassign student
// @Description Remove a student from the authenticated teacher's roster
// @Tags Assignments
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teachers/me/students/{studentId} [delete]
func (h *AssignmentHandler) UnassignStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID := c.Param("studentId")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student id is required"))
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if err := h.service.UnassignStudent(c.Request.Context(), claims.UserID, studentID, meta); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ExportRoster godoc
// @Summary Export roster
// @Description Download the assigned-students roster as CSV or PDF
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teachers/me/students/export [get]
func (h *AssignmentHandler) ExportRoster(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := h.exports.Roster(c.Request.Context(), claims.UserID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
