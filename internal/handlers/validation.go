package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 16

var errInvalidPayload = errors.New("invalid payload")

// decodeJSON reads exactly one JSON value from a size-limited body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return errInvalidPayload
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errInvalidPayload
	}
	return nil
}
