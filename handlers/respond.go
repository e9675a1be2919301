package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/vector_store"
)

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// StatusCode maps a terminal generation result to its HTTP status.
func StatusCode(res generation.Result) int {
	switch res.Status {
	case generation.StatusSuccess:
		return http.StatusOK
	case generation.StatusRejected, generation.StatusRenderFailed:
		return http.StatusUnprocessableEntity
	case generation.StatusFailed:
		if res.Kind == generation.KindInvalidRequest {
			return http.StatusInternalServerError
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// resultPayload is the JSON body for a generation result. The value is put
// under key on success and render failures.
func resultPayload(res generation.Result, key string) map[string]any {
	body := map[string]any{
		"status":  res.Status,
		"message": res.Message(),
	}
	switch res.Status {
	case generation.StatusSuccess:
		body[key] = res.Value
		body["attempts"] = res.Attempts
		if res.Explanation != "" {
			body["explanation"] = res.Explanation
		}
	case generation.StatusRejected:
		body["error"] = res.Reason
	case generation.StatusRenderFailed:
		body["error"] = res.Reason
		body[key] = res.Value
	case generation.StatusFailed:
		body["kind"] = res.Kind
		body["attempts"] = res.Attempts
		if res.Err != nil {
			body["error"] = res.Err.Error()
		}
	}
	return body
}

func writeResult(w http.ResponseWriter, res generation.Result, key string) {
	writeJSON(w, StatusCode(res), resultPayload(res, key))
}

// writeRetrievalError reports a failure that happened before generation.
func writeRetrievalError(w http.ResponseWriter, err error) {
	if errors.Is(err, vector_store.ErrIndexNotLoaded) || errors.Is(err, vector_store.ErrIndexNotFound) {
		writeJSONError(w, "knowledge base index is not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSONError(w, err.Error(), http.StatusInternalServerError)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
