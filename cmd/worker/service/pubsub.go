package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
)

// PushPath is where Pub/Sub push subscriptions deliver build jobs.
const PushPath = "/modules/vertical-builder"

const maxPushBody = 1 << 20

type pushMessage struct {
	Data       *string           `json:"data"`
	MessageID  string            `json:"messageId"`
	Attributes map[string]string `json:"attributes"`
}

type pushEnvelope struct {
	Message      *pushMessage `json:"message"`
	Subscription string       `json:"subscription"`
}

type intakeResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HandlePush handles a Pub/Sub push delivery.
//
//	200 {"status":"accepted","jobId":...}  job queued
//	400 {"status":"invalid","error":...}   malformed envelope or job; do not redeliver
//	503 {"status":"rejected"}              queue full or shutting down; redeliver later
func (s *BuildService) HandlePush(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePush(r)
	if err != nil {
		s.logger.Error("Invalid Pub/Sub request", logfields.Error(err))
		writeJSON(w, http.StatusBadRequest, intakeResponse{Status: "invalid", Error: err.Error()})
		return
	}

	d, err := s.Accept(payload)
	switch {
	case errors.Is(err, ErrRejected):
		writeJSON(w, http.StatusServiceUnavailable, intakeResponse{Status: "rejected"})
	case err != nil:
		s.logger.Error("Invalid Pub/Sub request", logfields.Error(err))
		writeJSON(w, http.StatusBadRequest, intakeResponse{Status: "invalid", Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, intakeResponse{Status: "accepted", JobID: d.JobID})
	}
}

// decodePush extracts the job payload from a push envelope.
func decodePush(r *http.Request) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, berrors.Invalid("Content-Type must be application/json")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		return nil, berrors.WrapError(err, berrors.CategoryInvalid, "failed to read request body").Build()
	}

	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, berrors.Invalid("Request body must be a JSON object")
	}
	if envelope.Message == nil || envelope.Message.Data == nil {
		return nil, berrors.Invalid("Missing Pub/Sub message.data")
	}

	payload, err := base64.StdEncoding.DecodeString(*envelope.Message.Data)
	if err != nil {
		return nil, berrors.WrapError(err, berrors.CategoryInvalid, "message.data is not valid base64").Build()
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
