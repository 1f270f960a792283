// Package handlers maps bridge requests onto session intents.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ramonehamilton/mtg-commander/internal/api/response"
	"github.com/ramonehamilton/mtg-commander/internal/apperror"
	"github.com/ramonehamilton/mtg-commander/internal/deck"
	"github.com/ramonehamilton/mtg-commander/internal/session"
)

// writeError maps an error returned by the session to a status code.
// Remote failures never reach here; the session keeps them as LastError.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case apperror.IsValidation(err):
		response.BadRequest(w, err)
	case errors.Is(err, session.ErrBusy):
		response.Conflict(w, err)
	case errors.Is(err, deck.ErrUnknownDeck):
		response.NotFound(w, err)
	default:
		response.InternalError(w, err)
	}
}

func decode(r *http.Request, v interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.Invalid("body", "invalid request body")
	}
	return nil
}

// quantityParam reads ?quantity=; missing or malformed means 1.
func quantityParam(r *http.Request) int {
	q, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || q < 1 {
		return 1
	}
	return q
}
