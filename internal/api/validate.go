package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tollfee/internal/model"
)

const (
	maxJSONBody = 64 << 10
	maxCSVBody  = 8 << 20
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errTrailingData = errors.New("request body must contain a single JSON object")
)

// decodePassageInput reads one passage from a JSON body and normalizes it.
func decodePassageInput(w http.ResponseWriter, r *http.Request) (model.PassageInput, error) {
	var in model.PassageInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return in, errEmptyBody
		}
		return in, fmt.Errorf("decode passage: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return in, errTrailingData
	}
	return in.Normalize(), nil
}
