package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/api/middleware"
	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/validation"
)

// CourseHandler はコース・レッスン・受講状況のAPIを処理します。
type CourseHandler struct {
	courses     database.CourseRepository
	enrollments database.EnrollmentRepository
	gate        *middleware.Gate
	logger      *zap.Logger
}

// NewCourseHandler はCourseHandlerの新しいインスタンスを作成します。
func NewCourseHandler(courses database.CourseRepository, enrollments database.EnrollmentRepository, gate *middleware.Gate, logger *zap.Logger) *CourseHandler {
	return &CourseHandler{
		courses:     courses,
		enrollments: enrollments,
		gate:        gate,
		logger:      logger.Named("courses"),
	}
}

// ListCourses は公開中のコース一覧を返します。Tierが足りないコースには locked が付きます。
// GET /api/courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.ListPublishedCourses(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]models.CourseListItem, 0, len(courses))
	for _, c := range courses {
		items = append(items, models.CourseListItem{Course: c, Locked: !h.gate.Allows(r, c.TierRequired)})
	}
	WriteJSONResponse(w, http.StatusOK, items)
}

// GetCourse はモジュールとレッスンを含むコースの詳細を返します。
// GET /api/courses/{courseID}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.GetCourse(r.Context(), mux.Vars(r)["courseID"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.gate.AllowAPI(w, r, &course.TierRequired) {
		return
	}
	WriteJSONResponse(w, http.StatusOK, course)
}

// Enroll はコースに受講登録します。既に登録済みなら既存の登録を返します。
// POST /api/courses/{courseID}/enroll
func (h *CourseHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	course, err := h.courses.GetCourse(r.Context(), mux.Vars(r)["courseID"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.gate.AllowAPI(w, r, &course.TierRequired) {
		return
	}

	enrollment, err := h.enrollments.Enroll(r.Context(), userID, course.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("enrolled", zap.String("user_id", userID), zap.String("course_id", course.ID))
	WriteJSONResponse(w, http.StatusCreated, enrollment)
}

// ListEnrollments はユーザーの受講登録を返します。
// GET /api/enrollments
func (h *CourseHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	enrollments, err := h.enrollments.ListEnrollments(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, enrollments)
}

// GetLesson はレッスンを返します。レッスンのTier、無ければコースのTierでゲートします。
// GET /api/lessons/{lessonID}
func (h *CourseHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.courses.GetLesson(r.Context(), mux.Vars(r)["lessonID"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.gate.AllowAPI(w, r, &lesson.EffectiveTier) {
		return
	}
	WriteJSONResponse(w, http.StatusOK, lesson)
}

// SaveProgress はレッスンの視聴進捗を保存します。
// POST /api/lessons/{lessonID}/progress
func (h *CourseHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req models.LessonProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	lesson, err := h.courses.GetLesson(r.Context(), mux.Vars(r)["lessonID"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.gate.AllowAPI(w, r, &lesson.EffectiveTier) {
		return
	}

	saved, err := h.enrollments.SaveLessonProgress(r.Context(), models.LessonProgress{
		UserID:             userID,
		LessonID:           lesson.ID,
		Completed:          req.Completed,
		ProgressPercentage: req.ProgressPercentage,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, saved)
}
