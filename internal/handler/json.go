package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const maxRequestBody = 64 << 10

// decodeJSON reads and decodes a request body into dst. The body is bounded
// and unknown fields are tolerated, matching what browser clients send.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))

	return dec.Decode(dst)
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("Write response", zap.Error(err))
	}
}

// rawString encodes s as a JSON string for use in a json.RawMessage slot.
func rawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)

	return b
}
