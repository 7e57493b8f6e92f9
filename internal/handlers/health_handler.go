package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Startup steps reported by /healthz
const (
	StepDatabase   = "Database connection"
	StepMigrations = "Running migrations"
	StepTemplates  = "Loading templates"
	StepServices   = "Initializing services"
)

// StartupStep is one stage of server initialization
type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// Readiness tracks the initialization progress
type Readiness struct {
	mu      sync.RWMutex
	ready   bool
	current string
	steps   []StartupStep
}

// NewReadiness creates a tracker for the given steps
func NewReadiness(steps ...string) *Readiness {
	r := &Readiness{current: "Initializing..."}
	for _, name := range steps {
		r.steps = append(r.steps, StartupStep{Name: name})
	}
	return r
}

// SetCurrentStep updates the current initialization step
func (r *Readiness) SetCurrentStep(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = step
}

// CompleteStep marks a step as completed
func (r *Readiness) CompleteStep(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.steps {
		if r.steps[i].Name == name {
			r.steps[i].Completed = true
			break
		}
	}
}

// MarkReady marks the server as fully initialized
func (r *Readiness) MarkReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
	r.current = "Server ready"
}

// IsReady returns whether the server is fully initialized
func (r *Readiness) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

type healthResponse struct {
	Status   string        `json:"status"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
}

// ServeHTTP reports readiness as JSON: 200 when ready, 503 while starting
func (r *Readiness) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	r.mu.RLock()
	resp := healthResponse{
		Status:  "starting",
		Current: r.current,
		Steps:   append([]StartupStep(nil), r.steps...),
	}
	completed := 0
	for _, step := range r.steps {
		if step.Completed {
			completed++
		}
	}
	if len(r.steps) > 0 {
		resp.Progress = (completed * 100) / len(r.steps)
	}
	ready := r.ready
	r.mu.RUnlock()

	status := http.StatusServiceUnavailable
	if ready {
		resp.Status = "ok"
		resp.Progress = 100
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Gate answers every request except /healthz with 503 until the server is
// ready, so routes can be mounted while it is already listening
func (r *Readiness) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.IsReady() {
			next.ServeHTTP(w, req)
			return
		}
		if req.URL.Path == "/healthz" {
			r.ServeHTTP(w, req)
			return
		}
		w.Header().Set("Retry-After", "5")
		http.Error(w, "Server is starting", http.StatusServiceUnavailable)
	})
}
