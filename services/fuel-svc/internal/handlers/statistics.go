package handlers

import (
	"net/http"

	"fueltracker/services/fuel-svc/internal/analysis"
	"fueltracker/services/fuel-svc/internal/middleware"
	"fueltracker/services/fuel-svc/internal/service"
)

// StatisticsHandler обработчики статистики
type StatisticsHandler struct {
	stats *service.StatisticsService
}

// NewStatisticsHandler создаёт новый handler
func NewStatisticsHandler(stats *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{stats: stats}
}

// Statistics GET /api/v1/statistics?from=&to=&station=
func (h *StatisticsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := h.stats.Statistics(r.Context(), middleware.GetUserID(r.Context()), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Series GET /api/v1/statistics/series
func (h *StatisticsHandler) Series(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	series, err := h.stats.Series(r.Context(), middleware.GetUserID(r.Context()), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// Insights GET /api/v1/statistics/insights?efficiency_goal=&monthly_budget=
func (h *StatisticsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		goals analysis.Goals
		err   error
	)
	if goals.EfficiencyGoal, err = queryFloat(q.Get("efficiency_goal"), "efficiency_goal"); err != nil {
		writeError(w, r, err)
		return
	}
	if goals.MonthlyBudget, err = queryFloat(q.Get("monthly_budget"), "monthly_budget"); err != nil {
		writeError(w, r, err)
		return
	}

	in, err := h.stats.Insights(r.Context(), middleware.GetUserID(r.Context()), goals)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
