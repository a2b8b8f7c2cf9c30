package handlers

import "net/http"

// Routes набор обработчиков API
type Routes struct {
	Records    *RecordHandler
	Statistics *StatisticsHandler
	Exchange   *ExchangeHandler
	Auth       *AuthHandler
	// Live websocket лента, nil если выключена
	Live http.Handler
}

// LiveRoute маршрут websocket ленты
const LiveRoute = "GET /api/v1/live"

// Register регистрирует маршруты API в mux
func (rt *Routes) Register(mux *http.ServeMux) {
	if h := rt.Auth; h != nil {
		mux.HandleFunc("POST /api/v1/auth/register", h.Register)
		mux.HandleFunc("POST /api/v1/auth/login", h.Login)
		mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
		mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	}

	if h := rt.Records; h != nil {
		mux.HandleFunc("GET /api/v1/records", h.List)
		mux.HandleFunc("POST /api/v1/records", h.Create)
		mux.HandleFunc("POST /api/v1/records/validate", h.Validate)
		mux.HandleFunc("GET /api/v1/records/{id}", h.Get)
		mux.HandleFunc("PUT /api/v1/records/{id}", h.Update)
		mux.HandleFunc("DELETE /api/v1/records/{id}", h.Delete)
		mux.HandleFunc("GET /api/v1/stations", h.Stations)
	}

	if h := rt.Statistics; h != nil {
		mux.HandleFunc("GET /api/v1/statistics", h.Statistics)
		mux.HandleFunc("GET /api/v1/statistics/series", h.Series)
		mux.HandleFunc("GET /api/v1/statistics/insights", h.Insights)
	}

	if h := rt.Exchange; h != nil {
		mux.HandleFunc("GET /api/v1/export/{format}", h.Export)
		mux.HandleFunc("POST /api/v1/import", h.Import)
		mux.HandleFunc("GET /api/v1/import/sample", h.Sample)
	}

	if rt.Live != nil {
		mux.Handle(LiveRoute, rt.Live)
	}
}
