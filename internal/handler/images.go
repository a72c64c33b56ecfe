package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/leca/cardvault/internal/api"
	"github.com/leca/cardvault/internal/imageproc"
)

const defaultMaxUploadMB = 20

// CompressImage handles POST /api/images/compress -- multipart "file" upload.
// The image is shrunk to the configured target and rejected with 413 when
// even the lowest quality exceeds the hard limit.
func (h *Handler) CompressImage(w http.ResponseWriter, r *http.Request) {
	maxMB := h.Config.MaxUploadMB
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMB)<<20)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.TooLarge(w, fmt.Sprintf("upload exceeds %dMB", maxMB))
			return
		}
		api.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.BadRequest(w, "missing required field: file")
		return
	}
	defer file.Close()

	res, err := h.Compressor.Compress(r.Context(), file, h.Config.ImageTargetKB)
	switch {
	case errors.Is(err, imageproc.ErrDecode):
		api.UnprocessableEntity(w, "Failed to process image. Please try a different image or use an image URL instead.")
		return
	case errors.Is(err, imageproc.ErrRead):
		api.BadRequest(w, "Failed to read file")
		return
	case err != nil:
		h.writeError(w, r, err)
		return
	}

	if err := imageproc.CheckBudget(res, h.Config.ImageLimitKB); err != nil {
		h.log().Info("compressed image over limit", "filename", header.Filename, "size_kb", res.SizeKB, "error", err)
		api.TooLarge(w, fmt.Sprintf("Image is still too large after compression (%.1fKB). "+
			"Please use a smaller image or provide an image URL instead.", res.SizeKB))
		return
	}

	h.log().Info("image compressed",
		"filename", header.Filename,
		"format", res.SourceFormat,
		"width", res.Width,
		"height", res.Height,
		"quality", res.Quality,
		"attempts", res.Attempts,
		"size_kb", res.SizeKB,
	)

	if !res.Fits(h.Config.ImageTargetKB) {
		api.WriteJSON(w, http.StatusOK, api.MessageResponse(res, api.CodeSizeWarning,
			fmt.Sprintf("Image is %.1fKB, above the %.0fKB target but within the limit.", res.SizeKB, h.Config.ImageTargetKB)))
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(res))
}
