package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"quad/internal/auth"
	"quad/internal/security"
	"quad/internal/service"
	"quad/internal/signup"
)

// AuthHandler handles sign-up, sign-in and the password flows
type AuthHandler struct {
	provisioning *service.ProvisioningService
	sessions     *service.SessionService
	middleware   *Middleware
	templates    *template.Template
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(provisioning *service.ProvisioningService, sessions *service.SessionService, middleware *Middleware, templates *template.Template, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		provisioning: provisioning,
		sessions:     sessions,
		middleware:   middleware,
		templates:    templates,
		logger:       logger.Named("auth"),
	}
}

// Home renders the landing page, or sends signed-in users to their dashboard
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	if path, ok := h.signedInDashboard(r); ok {
		http.Redirect(w, r, path, http.StatusSeeOther)
		return
	}
	h.render(w, "home.tmpl", PageViewData{Title: "Quad"})
}

// ShowSignUp renders the sign-up page
func (h *AuthHandler) ShowSignUp(w http.ResponseWriter, r *http.Request) {
	h.render(w, "sign_up.tmpl", SignUpViewData{
		Title:   "Sign up - Quad",
		Message: messageFromQuery(r.URL.Query()),
	})
}

// SignUp handles sign-up form submission
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	outcome := h.provisioning.SignUp(r.Context(), signup.FromValues(r.PostForm))
	if outcome.Flagged {
		h.logger.Warn("sign-up left a partially provisioned account", zap.String("message", outcome.Message))
	}
	redirect(w, r, outcome)
}

// ValidateSignUp runs the sign-up validator on a JSON body so the page can
// show the same messages before submitting
func (h *AuthHandler) ValidateSignUp(w http.ResponseWriter, r *http.Request) {
	var form signup.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&form); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidFormData, "", nil)
		return
	}

	resp := ValidateResponse{Valid: true}
	if _, err := signup.Validate(form.Normalize()); err != nil {
		resp = ValidateResponse{Valid: false, Message: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode validation response", zap.Error(err))
	}
}

// ShowSignIn renders the sign-in page
func (h *AuthHandler) ShowSignIn(w http.ResponseWriter, r *http.Request) {
	if path, ok := h.signedInDashboard(r); ok {
		http.Redirect(w, r, path, http.StatusSeeOther)
		return
	}
	h.render(w, "sign_in.tmpl", PageViewData{
		Title:   "Sign in - Quad",
		Message: messageFromQuery(r.URL.Query()),
	})
}

// SignIn handles sign-in form submission
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	outcome, session := h.sessions.SignIn(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if session != nil {
		setSessionCookie(w, r, session)
	}
	redirect(w, r, outcome)
}

// ShowForgotPassword renders the forgot password page
func (h *AuthHandler) ShowForgotPassword(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.render(w, "forgot_password.tmpl", ForgotPasswordViewData{
		Title:       "Forgot password - Quad",
		CallbackURL: q.Get("callbackUrl"),
		Message:     messageFromQuery(q),
	})
}

// ForgotPassword handles the forgot password form submission
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	outcome := h.sessions.ForgotPassword(r.Context(), r.PostFormValue("email"), r.PostFormValue("callbackUrl"))
	redirect(w, r, outcome)
}

// ShowResetPassword renders the reset password page for a signed-in user
func (h *AuthHandler) ShowResetPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, "reset_password.tmpl", ResetPasswordViewData{
		Title:     "Reset password - Quad",
		CSRFToken: h.middleware.CSRFToken(r),
		Message:   messageFromQuery(r.URL.Query()),
	})
}

// ResetPassword handles the reset password form submission
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	outcome := h.sessions.ResetPassword(r.Context(),
		GetTokenFromContext(r.Context()),
		r.PostFormValue("password"),
		r.PostFormValue("confirmPassword"))
	redirect(w, r, outcome)
}

// SignOut ends the session
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		token = cookie.Value
	}

	outcome := h.sessions.SignOut(r.Context(), token)
	http.SetCookie(w, security.CreateDeleteCookie(r, SessionCookieName))
	redirect(w, r, outcome)
}

// Confirm handles the link emailed on sign-up or password recovery
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	outcome, session := h.sessions.Confirm(r.Context(), q.Get("token_hash"), q.Get("type"), q.Get("next"))
	if session != nil {
		setSessionCookie(w, r, session)
	}
	redirect(w, r, outcome)
}

func (h *AuthHandler) signedInDashboard(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	user, err := h.sessions.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		return "", false
	}
	return service.DashboardPath(user.Metadata.Role)
}

func (h *AuthHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "Error rendering "+name, err)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, outcome service.Outcome) {
	http.Redirect(w, r, outcome.Location(), http.StatusSeeOther)
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, session *auth.Session) {
	http.SetCookie(w, security.CreateSessionCookie(r, SessionCookieName, session.AccessToken, session.ExpiresAt))
}
