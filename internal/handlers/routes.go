package handlers

import (
	"net/http"

	"quad/internal/models"
	"quad/internal/service"
)

// RegisterRoutes mounts every page and form endpoint on mux
func RegisterRoutes(mux *http.ServeMux, m *Middleware, authHandler *AuthHandler, dashboardHandler *DashboardHandler, readiness *Readiness) {
	mux.Handle("GET /healthz", readiness)

	// Public routes
	mux.HandleFunc("GET /{$}", authHandler.Home)
	mux.HandleFunc("GET "+service.PathSignUp, authHandler.ShowSignUp)
	mux.HandleFunc("POST "+service.PathSignUp, m.RateLimit(authHandler.SignUp))
	mux.HandleFunc("POST /sign-up/validate", authHandler.ValidateSignUp)
	mux.HandleFunc("GET "+service.PathSignIn, authHandler.ShowSignIn)
	mux.HandleFunc("POST "+service.PathSignIn, m.RateLimit(authHandler.SignIn))
	mux.HandleFunc("GET "+service.PathForgotPassword, authHandler.ShowForgotPassword)
	mux.HandleFunc("POST "+service.PathForgotPassword, m.RateLimit(authHandler.ForgotPassword))
	mux.HandleFunc("GET /auth/confirm", authHandler.Confirm)
	mux.HandleFunc("POST /sign-out", m.CSRFProtect(authHandler.SignOut))

	// Protected routes
	mux.HandleFunc("GET "+service.PathResetPassword, m.RequireSession(authHandler.ShowResetPassword))
	mux.HandleFunc("POST "+service.PathResetPassword, m.RequireSession(m.CSRFProtect(authHandler.ResetPassword)))
	mux.HandleFunc("GET "+service.PathStudentDashboard, m.RequireRole(models.RoleStudent, dashboardHandler.StudentDashboard))
	mux.HandleFunc("GET "+service.PathCounsellorDashboard, m.RequireRole(models.RoleCounsellor, dashboardHandler.CounsellorDashboard))
}
