package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ErrorResponse is the body returned for every failed request.
type ErrorResponse struct {
	ErrNo int    `json:"err_no"`
	Error string `json:"error"`
}

func WriteJsonError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(ErrorResponse{ErrNo: code, Error: msg})
	if err != nil {
		slog.Error("error serializing error response body", "error", err)
	}
}

func ParseRequestBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dest)
	if err != nil {
		slog.Error("error parsing request body", "error", err)
		WriteJsonError(w, http.StatusBadRequest, fmt.Sprintf("error parsing request body: %v", err))
		return false
	}
	return true
}

func WriteJsonResponseStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	WriteJsonResponseStatus(w, http.StatusOK, data)
}

func WriteSuccess(w http.ResponseWriter) {
	WriteJsonResponse(w, struct{}{})
}

func URLParam(r *http.Request, key string) (string, error) {
	param := chi.URLParam(r, key)
	if len(param) == 0 {
		return "", fmt.Errorf("missing {%v} url parameter", key)
	}
	return param, nil
}

func URLParamInt(r *http.Request, key string) (int64, error) {
	param := chi.URLParam(r, key)

	if len(param) == 0 {
		return 0, fmt.Errorf("missing {%v} url parameter", key)
	}

	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id '%v' provided: %w", param, err)
	}

	return id, nil
}

func BoolEnvVar(key string) bool {
	value := os.Getenv(key)
	return value == "true" || value == "1"
}

func IntEnvVar(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("unable to parse integer from env var %v='%v': %v", key, value, err)
	}
	return i
}

func OptionalEnv(key string) string {
	return os.Getenv(key)
}
