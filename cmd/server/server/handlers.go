package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/models"
	"github.com/quillhq/quill/pkg/services"
)

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	services.AskResult
}

type executeRequest struct {
	Dataset string           `json:"dataset"`
	Plan    models.QueryPlan `json:"plan"`
}

type executeResponse struct {
	Result *models.ExecutionResult `json:"result"`
	Chart  *models.ChartSpec       `json:"chart,omitempty"`
}

type schemaResponse struct {
	Datasets map[string][]models.Column `json:"datasets"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodePlanInvalid, "invalid request body"))
		return
	}

	// Each session carries its own bounded history; a fresh session ID is
	// minted when the client does not supply one, and echoed back so the
	// client can continue the conversation.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	history := s.sessions.Get(sessionID)

	out, err := s.service.Ask(r.Context(), &services.AskRequest{
		Question: req.Question,
		History:  history.Turns(),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	history.Append(req.Question, out.Answer)
	respondJSON(w, http.StatusOK, askResponse{SessionID: sessionID, AskResult: *out})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodePlanInvalid, "invalid request body"))
		return
	}

	result, chart, err := s.service.Execute(r.Context(), req.Dataset, &req.Plan)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, executeResponse{Result: result, Chart: chart})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, schemaResponse{Datasets: s.service.GetSchema()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Health())
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondError maps engine error codes onto HTTP statuses and returns the
// code and message as a JSON body.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodePlanInvalid, errors.CodeParseFailed:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeNotReady:
		status = http.StatusServiceUnavailable
	case errors.CodeConnectivity:
		status = http.StatusBadGateway
	case errors.CodeLimitExceeded:
		status = http.StatusUnprocessableEntity
	case errors.CodeDeadlineExceeded, errors.CodeCanceled:
		status = http.StatusGatewayTimeout
	case errors.CodeUnauthorized:
		status = http.StatusUnauthorized
	}

	respondJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    errors.GetCode(err),
			"message": errors.GetMessage(err),
		},
	})
}
