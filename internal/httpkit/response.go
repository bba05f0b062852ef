package httpkit

import (
	"encoding/json"
	"net/http"

	renderv1 "cardrender/internal/contracts/render/v1"
)

// DefaultMaxBodyBytes bounds request bodies when no explicit limit is given.
const DefaultMaxBodyBytes int64 = 2 << 20

// Envelope is the response shape shared by every endpoint.
type Envelope = renderv1.Response

// DecodeJSON decodes the request body into v, reading at most limit bytes.
// Unknown fields are accepted: render payloads are free-form.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteFail writes {ok:false, error, code}.
func WriteFail(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, Envelope{OK: false, Error: msg, Code: code})
}
