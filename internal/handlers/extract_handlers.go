package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brightdesk/classportal/internal/http/response"
)

type extractRequest struct {
	Text string `json:"text"`
}

// ExtractContent handles POST /pages/extract — turns pasted text into
// structured page content via the external extraction API.
func (h *Handlers) ExtractContent(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		response.BadRequest(w, "Text is required")
		return
	}

	result, err := h.extractor.Extract(r.Context(), req.Text)
	if err != nil {
		response.WriteError(w, http.StatusBadGateway,
			"Content extraction is unavailable right now. Please try again.", response.CodeUpstreamError)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}
