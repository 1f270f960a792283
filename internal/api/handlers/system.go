package handlers

import (
	"net/http"

	"github.com/ramonehamilton/mtg-commander/internal/api/response"
	"github.com/ramonehamilton/mtg-commander/internal/session"
	"github.com/ramonehamilton/mtg-commander/internal/version"
)

// SystemHandler exposes session state and diagnostics.
type SystemHandler struct {
	session *session.Session
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(s *session.Session) *SystemHandler {
	return &SystemHandler{session: s}
}

// GetState returns a snapshot of the whole session.
func (h *SystemHandler) GetState(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, h.session.Snapshot())
}

// ClearError drops the recorded error.
func (h *SystemHandler) ClearError(w http.ResponseWriter, _ *http.Request) {
	h.session.ClearError()
	response.NoContent(w)
}

// GetMetrics returns call latency and outcome counters.
func (h *SystemHandler) GetMetrics(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, h.session.Metrics().GetStats())
}

// GetVersion returns the build version.
func (h *SystemHandler) GetVersion(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{"version": version.GetVersion()})
}
