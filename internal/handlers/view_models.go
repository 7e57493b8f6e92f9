package handlers

import (
	"net/url"

	"quad/internal/models"
	"quad/internal/signup"
)

// FormMessage is the status line shown under a form
type FormMessage struct {
	Kind string
	Text string
}

// messageFromQuery reads the error or success parameter set by an outcome
// redirect
func messageFromQuery(q url.Values) *FormMessage {
	if msg := q.Get("error"); msg != "" {
		return &FormMessage{Kind: "error", Text: msg}
	}
	if msg := q.Get("success"); msg != "" {
		return &FormMessage{Kind: "success", Text: msg}
	}
	return nil
}

type PageViewData struct {
	Title   string
	Message *FormMessage
}

type SignUpViewData struct {
	Title   string
	Form    signup.Form
	Message *FormMessage
}

type ForgotPasswordViewData struct {
	Title       string
	CallbackURL string
	Message     *FormMessage
}

type ResetPasswordViewData struct {
	Title     string
	CSRFToken string
	Message   *FormMessage
}

type DashboardViewData struct {
	Title             string
	Profile           *models.Profile
	Student           *models.StudentProfile
	Counsellor        *models.CounsellorProfile
	ProfileIncomplete bool
	CSRFToken         string
}

// ValidateResponse is the JSON body returned by POST /sign-up/validate
type ValidateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}
