package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
	"github.com/stemsi/exstem-portal/internal/validator"
	ws "github.com/stemsi/exstem-portal/internal/websocket"
)

// StudentPortalHandler handles student-facing pages: the exam list, the
// exam session and the dashboard widgets.
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
	catalogService *service.CatalogService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.ExamSessionService,
	catalogService *service.CatalogService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		catalogService: catalogService,
	}
}

// ListExams godoc
// GET /api/student/exams
// Returns one page of the exams available to the student.
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	id := middleware.GetIdentity(c)

	exams, p, err := h.catalogService.StudentExams(c.Request.Context(), id.UserID, listQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, p)
}

// GetExam godoc
// GET /api/student/exams/:code
// Returns the listing of one exam, shown before the student starts it.
func (h *StudentPortalHandler) GetExam(c *gin.Context) {
	exam, err := h.catalogService.LookupExam(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GetAnalytics godoc
// GET /api/student/analytics
func (h *StudentPortalHandler) GetAnalytics(c *gin.Context) {
	id := middleware.GetIdentity(c)

	a, err := h.catalogService.Analytics(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"analytics": a})
}

// ListBadges godoc
// GET /api/student/badges
func (h *StudentPortalHandler) ListBadges(c *gin.Context) {
	id := middleware.GetIdentity(c)

	badges, err := h.catalogService.Badges(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"badges": badges})
}

// OpenSession godoc
// POST /api/student/session
// Loads an exam and starts the clock. A failed load keeps the session so
// posting again retries.
func (h *StudentPortalHandler) OpenSession(c *gin.Context) {
	id := middleware.GetIdentity(c)

	var req model.LoadExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Retry(c.Request.Context(), id.UserID, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": sess.View()})
}

// GetSession godoc
// GET /api/student/session
// Returns the current view of the open session.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

// SelectOption godoc
// PUT /api/student/session/answers/:number
func (h *StudentPortalHandler) SelectOption(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	number, ok := questionParam(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionOutOfRange)
		return
	}

	var req model.SelectOptionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := sess.SelectOption(number, req.Option); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

// ToggleMark godoc
// POST /api/student/session/marks/:number
func (h *StudentPortalHandler) ToggleMark(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	number, ok := questionParam(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionOutOfRange)
		return
	}

	marked, err := sess.ToggleMark(number)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"marked": marked, "session": sess.View()})
}

// Navigate godoc
// POST /api/student/session/navigate
// Moves to the next or previous question, or jumps to a number.
func (h *StudentPortalHandler) Navigate(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := navigate(sess, req.Direction, req.Question); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

// Submit godoc
// POST /api/student/session/submit
// Submits manually. A concurrent auto-submit makes this return 409.
func (h *StudentPortalHandler) Submit(c *gin.Context) {
	id := middleware.GetIdentity(c)

	res, err := h.sessionService.Submit(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	sess, err := h.sessionService.Get(id.UserID)
	if err != nil {
		response.Success(c, http.StatusOK, gin.H{"result": res})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res, "session": sess.View()})
}

// Review godoc
// GET /api/student/session/review?filter=all|correct|incorrect|unanswered|marked
// Filters the submitted attempt locally; nothing is refetched.
func (h *StudentPortalHandler) Review(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	filter, ok := service.ParseReviewFilter(c.DefaultQuery("filter", string(service.FilterAll)))
	if !ok {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"filter": "filter must be one of all, correct, incorrect, unanswered, marked",
		})
		return
	}

	items, err := sess.Review(filter)
	if err != nil {
		fail(c, err)
		return
	}
	summary, err := sess.Summary()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"filter":  filter,
		"items":   items,
		"summary": summary,
	})
}

// CloseSession godoc
// DELETE /api/student/session
// Stops the timers and drops the session.
func (h *StudentPortalHandler) CloseSession(c *gin.Context) {
	id := middleware.GetIdentity(c)
	h.sessionService.Close(id.UserID)
	response.Success(c, http.StatusOK, gin.H{})
}

func (h *StudentPortalHandler) session(c *gin.Context) (*service.ExamSession, bool) {
	id := middleware.GetIdentity(c)
	sess, err := h.sessionService.Get(id.UserID)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return sess, true
}

// navigate applies a direction, or a jump when direction is empty.
func navigate(sess *service.ExamSession, direction string, question int) error {
	switch direction {
	case ws.NavigateNext:
		_, err := sess.Next()
		return err
	case ws.NavigatePrevious:
		_, err := sess.Previous()
		return err
	case "":
		if question == 0 {
			return service.ErrQuestionOutOfRange
		}
		return sess.GoTo(question)
	default:
		return &service.ValidationError{Fields: map[string]string{"direction": "direction must be next or previous"}}
	}
}
