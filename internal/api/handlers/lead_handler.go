package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/services/exporter"
	"github.com/trading-academy/academy-web/internal/services/leadquiz"
)

// defaultExportWindow は since が指定されない時にエクスポートする期間です。
const defaultExportWindow = 30 * 24 * time.Hour

// LeadHandler は診断クイズとリード獲得・エクスポートのAPIを処理します。
// leads が nil の場合（データベース未設定）はリード関連のAPIが503になります。
type LeadHandler struct {
	quiz   *leadquiz.Service
	leads  database.LeadRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewLeadHandler はLeadHandlerの新しいインスタンスを作成します。
func NewLeadHandler(quiz *leadquiz.Service, leads database.LeadRepository, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{quiz: quiz, leads: leads, logger: logger.Named("leads"), now: time.Now}
}

// quizResponse は設問の一覧、または ?step= を付けた時の1問分です。
type quizResponse struct {
	Total     int                 `json:"total"`
	Questions []leadquiz.Question `json:"questions,omitempty"`
	Question  *leadquiz.Question  `json:"question,omitempty"`
	Progress  *leadquiz.Progress  `json:"progress,omitempty"`
}

// GetQuiz は診断クイズの設問を返します。
// GET /api/quiz
func (h *LeadHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	total := leadquiz.Total()
	raw := r.URL.Query().Get("step")
	if raw == "" {
		WriteJSONResponse(w, http.StatusOK, quizResponse{Total: total, Questions: leadquiz.Questions()})
		return
	}

	step, err := strconv.Atoi(raw)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "step must be an integer")
		return
	}
	q, ok := leadquiz.QuestionAt(step)
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, fmt.Sprintf("step must be between 1 and %d", total))
		return
	}
	progress := leadquiz.NewProgress(step, total)
	WriteJSONResponse(w, http.StatusOK, quizResponse{Total: total, Question: &q, Progress: &progress})
}

// SubmitLead は回答と連絡先を受け取り、推奨プランを返します。
// POST /api/leads
func (h *LeadHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	if h.quiz == nil {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "lead capture is not configured")
		return
	}
	var req models.LeadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	submission, err := h.quiz.Submit(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, submission)
}

// parseSince は ?since= をRFC3339または日付（2006-01-02）として読みます。
func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.Add(-defaultExportWindow), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be RFC3339 or YYYY-MM-DD: %q", raw)
	}
	return t, nil
}

// ExportLeads は since 以降のリードをXLSXでダウンロードさせます。
// GET /api/admin/leads/export
func (h *LeadHandler) ExportLeads(w http.ResponseWriter, r *http.Request) {
	if h.leads == nil {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "lead storage is not configured")
		return
	}
	now := h.now()
	since, err := parseSince(r.URL.Query().Get("since"), now)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	leads, err := h.leads.ListLeads(r.Context(), since)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	filename := fmt.Sprintf("leads-%s.xlsx", now.UTC().Format("20060102"))
	w.Header().Set("Content-Type", exporter.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := exporter.WriteLeads(w, leads); err != nil {
		// ヘッダー送信後なのでログに残すだけ
		h.logger.Error("lead export failed", zap.Error(err))
		return
	}
	h.logger.Info("leads exported", zap.Int("count", len(leads)), zap.Time("since", since))
}
