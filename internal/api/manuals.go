package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MikeSquared-Agency/labguard/internal/segment"
)

type SegmentRequest struct {
	Chunks []segment.Chunk `json:"chunks" validate:"required,min=1"`
}

type SegmentResponse struct {
	ManualID      string          `json:"manual_id"`
	ExperimentIDs []string        `json:"experiment_ids"`
	Chunks        []segment.Chunk `json:"chunks"`
}

// segmentManual handles POST /api/v1/manuals/{manual_id}/segment
func (s *Server) segmentManual(w http.ResponseWriter, r *http.Request) {
	manualID := chi.URLParam(r, "manual_id")
	if len(manualID) > 64 {
		writeError(w, http.StatusBadRequest, "manual_id too long")
		return
	}

	var req SegmentRequest
	if err := decodeAndValidate(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chunks, ids := s.deps.Segmenter.AssignExperimentIDs(r.Context(), req.Chunks, manualID)
	writeJSON(w, http.StatusOK, SegmentResponse{
		ManualID:      manualID,
		ExperimentIDs: ids,
		Chunks:        chunks,
	})
}

func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		return errors.New(validationMessage(err))
	}
	return nil
}
