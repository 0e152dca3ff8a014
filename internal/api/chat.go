package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/iddcare/carebot/internal/bot"
	"github.com/iddcare/carebot/internal/log"
)

// maxChatBody caps the request body; caregiver questions are short text.
const maxChatBody = 64 << 10 // 64 KiB

// Chatter answers one question. *bot.Engine satisfies it; tests substitute
// fakes.
type Chatter interface {
	Chat(ctx context.Context, query string) (bot.Response, error)
}

// chatRequest is the inbound wire shape.
type chatRequest struct {
	Query string `json:"query"`
}

// chatFailure is returned when generation fails after retrieval succeeded:
// the error plus whatever partial answer and citations were already computed.
type chatFailure struct {
	Error     errorBody      `json:"error"`
	Answer    string         `json:"answer,omitempty"`
	Citations []bot.Citation `json:"citations"`
}

type chatHandler struct {
	engine Chatter
	logger log.Logger
}

// send handles POST /api/v1/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be JSON with a query field", h.logger)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query must not be empty", h.logger)
		return
	}

	resp, err := h.engine.Chat(r.Context(), query)
	if err != nil {
		requestID, _ := requestIDFromContext(r.Context())
		h.logger.Error("chat failed",
			"error", err,
			"request_id", requestID,
		)

		// Partial results beat a blank failure: retrieval may have
		// produced citations and the safety scan a crisis notice even
		// though generation failed.
		writeJSON(w, http.StatusBadGateway, chatFailure{
			Error:     errorBody{Code: "generation_failed", Message: "answer generation failed, partial results attached"},
			Answer:    resp.Answer,
			Citations: ensureCitations(resp.Citations),
		}, h.logger)
		return
	}

	resp.Citations = ensureCitations(resp.Citations)
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// ensureCitations keeps the citations field an array on the wire, never null.
func ensureCitations(c []bot.Citation) []bot.Citation {
	if c == nil {
		return []bot.Citation{}
	}
	return c
}
