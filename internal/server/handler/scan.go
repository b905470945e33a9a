package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbscanner/internal/service"
)

// Scanner defines the scan operations the scan handler requires.
type Scanner interface {
	ScanOnce(ctx context.Context, execute bool) service.CycleResult
	Last() (service.CycleResult, bool)
}

// ScanHandler runs on-demand scans and reports the last cycle.
type ScanHandler struct {
	scanner Scanner
	logger  *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(scanner Scanner, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, logger: handlerLogger(logger, "scan")}
}

// ScanNow runs one cycle with the current settings and returns it. Signals
// are reported but never executed.
// POST /api/scan
func (h *ScanHandler) ScanNow(w http.ResponseWriter, r *http.Request) {
	res := h.scanner.ScanOnce(r.Context(), false)
	h.logger.InfoContext(r.Context(), "on-demand scan",
		slog.Int("signals", len(res.Signals)),
		slog.String("error", res.Error),
	)
	writeJSON(w, http.StatusOK, res)
}

// LastCycle returns the most recent cycle.
// GET /api/scan/last
func (h *ScanHandler) LastCycle(w http.ResponseWriter, r *http.Request) {
	res, ok := h.scanner.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no scan has run yet")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
