package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"skoglogg/internal/core"
)

type sessionResponse struct {
	ID          string  `json:"id"`
	Label       string  `json:"label,omitempty"`
	Owner       string  `json:"owner,omitempty"`
	Date        string  `json:"date"`
	TotalVolume float64 `json:"total_volume"`
}

type measurementResponse struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	CategoryCode string    `json:"category_code"`
	Label        string    `json:"label"`
	Diameter     float64   `json:"diameter"`
	Length       float64   `json:"length"`
	Volume       float64   `json:"volume"`
	Timestamp    time.Time `json:"timestamp"`
}

type sessionDetailResponse struct {
	sessionResponse
	Measurements []measurementResponse `json:"measurements"`
	Categories   []string              `json:"categories"`
}

type categoryVolumeResponse struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	Volume float64 `json:"volume"`
}

type reportResponse struct {
	Period    string                   `json:"period"`
	Start     time.Time                `json:"start"`
	End       time.Time                `json:"end"`
	Total     float64                  `json:"total"`
	Breakdown []categoryVolumeResponse `json:"breakdown"`
}

func toSessionResponse(s core.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		Label:       s.Label,
		Owner:       s.Owner,
		Date:        s.Date.String(),
		TotalVolume: s.TotalVolume,
	}
}

func toMeasurementResponse(m core.Measurement) measurementResponse {
	return measurementResponse{
		ID:           m.ID,
		SessionID:    m.SessionID,
		CategoryCode: m.CategoryCode,
		Label:        core.SortimentLabel(m.CategoryCode),
		Diameter:     m.Diameter,
		Length:       m.Length,
		Volume:       m.Volume,
		Timestamp:    m.Timestamp,
	}
}

type createMeasurementRequest struct {
	CategoryCode string  `json:"category_code"`
	Diameter     float64 `json:"diameter"`
	Length       float64 `json:"length"`
}

// handleCreateMeasurement records a measurement into today's session,
// creating or rolling the session over first when needed.
func (s *Server) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	var req createMeasurementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sessionID, err := s.sessions.ResolveActiveSession(r.Context(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	m, err := s.ledger.RecordMeasurement(r.Context(), sessionID, req.CategoryCode, req.Diameter, req.Length)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Measurement recorded",
		"measurement_id", m.ID,
		"session_id", m.SessionID,
		"category_code", m.CategoryCode,
		"diameter_cm", m.Diameter,
		"length_m", m.Length,
		"volume_m3", m.Volume)

	writeJSON(w, http.StatusCreated, toMeasurementResponse(m))
}

func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sessionID, err := s.ledger.RemoveMeasurement(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Measurement removed",
		"measurement_id", id,
		"session_id", sessionID)

	w.WriteHeader(http.StatusNoContent)
}

type createSessionRequest struct {
	Label string `json:"label"`
	Owner string `json:"owner"`
	Date  string `json:"date"`
}

// handleCreateSession creates a named session explicitly; the active pointer
// keeps following the rollover rule regardless.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	date := core.DateOf(s.now())
	if req.Date != "" {
		var err error
		if date, err = core.ParseDate(req.Date); err != nil {
			writeError(w, r, err)
			return
		}
	}

	session, err := s.ledger.CreateSession(r.Context(), date, req.Label, req.Owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	start := core.NewDate(1, 1, 1)
	end := core.NewDate(9999, 12, 31)

	if v := r.URL.Query().Get("start"); v != "" {
		var err error
		if start, err = core.ParseDate(v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		var err error
		if end, err = core.ParseDate(v); err != nil {
			writeError(w, r, err)
			return
		}
	}

	sessions, err := s.ledger.ListSessions(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, toSessionResponse(session))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	detail, err := s.ledger.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := sessionDetailResponse{
		sessionResponse: toSessionResponse(detail.Session),
		Measurements:    make([]measurementResponse, 0, len(detail.Measurements)),
		Categories:      detail.Categories,
	}
	for _, m := range detail.Measurements {
		resp.Measurements = append(resp.Measurements, toMeasurementResponse(m))
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.ledger.RemoveSession(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Session removed", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.ledger.ClearMeasurements(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Session cleared", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleReport serves the week/month totals. An optional limit trims the
// breakdown for compact cards; the full set is the default.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	period := core.Period(r.PathValue("period"))

	report, err := s.reporter.WindowTotals(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}

	breakdown := report.Breakdown
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		if limit < len(breakdown) {
			breakdown = breakdown[:limit]
		}
	}

	resp := reportResponse{
		Period:    string(report.Period),
		Start:     report.Start,
		End:       report.End,
		Total:     report.Total,
		Breakdown: make([]categoryVolumeResponse, 0, len(breakdown)),
	}
	for _, cv := range breakdown {
		resp.Breakdown = append(resp.Breakdown, categoryVolumeResponse{
			Code:   cv.Code,
			Label:  cv.Label,
			Volume: cv.Volume,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
