package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/leca/cardvault/internal/api"
	"github.com/leca/cardvault/internal/bucket"
	"github.com/leca/cardvault/internal/collection"
	"github.com/leca/cardvault/internal/config"
	"github.com/leca/cardvault/internal/imageproc"
	"github.com/leca/cardvault/internal/session"
)

// maxJSONBody bounds JSON request bodies. Cards may embed a data URI image.
const maxJSONBody = 1 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Cards      *collection.Service
	Sessions   *session.Manager
	Compressor *imageproc.Compressor
	Config     *config.Config
	Logger     *slog.Logger
}

func (h *Handler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// decodeJSON reads a JSON request body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body exceeds %d bytes", collection.ErrPayloadTooLarge, maxErr.Limit)
		}
		return fmt.Errorf("%w: invalid JSON body: %v", collection.ErrValidation, err)
	}
	return nil
}

// writeError maps service errors onto the response envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *bucket.APIError
	var fieldErr *collection.FieldError
	switch {
	case errors.As(err, &fieldErr):
		api.InvalidField(w, fieldErr.Field, err.Error())
	case errors.Is(err, collection.ErrValidation):
		api.BadRequest(w, err.Error())
	case errors.Is(err, collection.ErrInvalidCredentials):
		api.Unauthorized(w, err.Error())
	case errors.Is(err, collection.ErrForbidden):
		api.Forbidden(w, err.Error())
	case errors.Is(err, collection.ErrNotFound):
		api.NotFound(w, err.Error())
	case errors.Is(err, collection.ErrUsernameTaken):
		api.Conflict(w, err.Error())
	case errors.Is(err, collection.ErrPayloadTooLarge), errors.Is(err, collection.ErrImageTooLarge):
		api.TooLarge(w, err.Error())
	case errors.As(err, &apiErr):
		h.log().Error("document store rejected request", "path", r.URL.Path, "status", apiErr.StatusCode, "error", err)
		api.BadGateway(w, "The card service is unavailable, please try again later")
	default:
		h.log().Error("request failed", "path", r.URL.Path, "error", err)
		api.Internal(w)
	}
}
