package handlers

import (
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quad/internal/auth"
	"quad/internal/models"
	"quad/internal/repository"
)

// DashboardHandler renders the role landing pages
type DashboardHandler struct {
	profiles   *repository.ProfileRepository
	middleware *Middleware
	templates  *template.Template
	logger     *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(profiles *repository.ProfileRepository, middleware *Middleware, templates *template.Template, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		profiles:   profiles,
		middleware: middleware,
		templates:  templates,
		logger:     logger.Named("dashboard"),
	}
}

// StudentDashboard renders the student landing page
func (h *DashboardHandler) StudentDashboard(w http.ResponseWriter, r *http.Request) {
	data, ok := h.baseData(w, r, "Student dashboard - Quad")
	if !ok {
		return
	}

	student, err := h.profiles.GetStudentProfile(r.Context(), data.Profile.ID)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "Failed to load student profile", err)
		return
	}
	data.Student = student
	data.ProfileIncomplete = data.ProfileIncomplete || student == nil

	h.render(w, data)
}

// CounsellorDashboard renders the counsellor landing page
func (h *DashboardHandler) CounsellorDashboard(w http.ResponseWriter, r *http.Request) {
	data, ok := h.baseData(w, r, "Counsellor dashboard - Quad")
	if !ok {
		return
	}

	counsellor, err := h.profiles.GetCounsellorProfile(r.Context(), data.Profile.ID)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "Failed to load counsellor profile", err)
		return
	}
	data.Counsellor = counsellor
	data.ProfileIncomplete = data.ProfileIncomplete || counsellor == nil

	h.render(w, data)
}

// baseData loads the base profile. Accounts without one get a placeholder
// built from their metadata.
func (h *DashboardHandler) baseData(w http.ResponseWriter, r *http.Request, title string) (*DashboardViewData, bool) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, ErrUnauthorized, http.StatusUnauthorized)
		return nil, false
	}

	profile, err := h.profiles.GetProfile(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "Failed to load profile", err)
		return nil, false
	}

	data := &DashboardViewData{
		Title:     title,
		Profile:   profile,
		CSRFToken: h.middleware.CSRFToken(r),
	}
	if profile == nil {
		data.Profile = placeholderProfile(user)
		data.ProfileIncomplete = true
	}
	return data, true
}

func (h *DashboardHandler) render(w http.ResponseWriter, data *DashboardViewData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "dashboard.tmpl", data); err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "Error rendering dashboard", err)
	}
}

func placeholderProfile(user *auth.User) *models.Profile {
	return &models.Profile{
		ID:        user.ID,
		FullName:  user.Metadata.FullName,
		Role:      user.Metadata.Role,
		Email:     user.Email,
		CreatedAt: time.Now(),
	}
}
