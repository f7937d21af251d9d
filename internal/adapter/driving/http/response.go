package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/moogar0880/problems"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

const (
	problemContentType = "application/problem+json"

	// statusClientClosedRequest is the de facto status for requests the
	// client abandoned.
	statusClientClosedRequest = 499
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(problemType).
		WithDetail(detail)
	sendProblem(w, status, problem)
}

func sendProblem(w http.ResponseWriter, status int, problem *problems.Problem) {
	data, err := json.Marshal(problem)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, "validation_error", detail)
}

func writeNotFound(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusNotFound, "not_found", detail)
}

func writeUnprocessable(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusUnprocessableEntity, "invalid_configuration", detail)
}

// writeInternalError hides the cause from the client. Callers log it.
func writeInternalError(w http.ResponseWriter, r *http.Request) {
	writeProblem(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// CommandRequest is the JSON body of the commands endpoint.
type CommandRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// ResultResponse is the JSON representation of an action Result.
type ResultResponse struct {
	Conclusion  string `json:"conclusion"`
	Emoji       string `json:"emoji"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	SummaryHTML string `json:"summary_html"`
}

// RecordResponse is the JSON representation of one history entry.
type RecordResponse struct {
	ID       int64          `json:"id"`
	RunID    string         `json:"run_id"`
	Rule     string         `json:"rule"`
	Action   string         `json:"action"`
	Trigger  string         `json:"trigger"`
	HeadSHA  string         `json:"head_sha"`
	Result   ResultResponse `json:"result"`
	RanAt    string         `json:"ran_at"`
	Pull     int            `json:"pull_number"`
	RepoName string         `json:"repository"`
}

// EvaluateResponse is the JSON body returned by the evaluate endpoint.
type EvaluateResponse struct {
	Records []RecordResponse `json:"records"`
}

func toResultResponse(res model.Result) ResultResponse {
	return ResultResponse{
		Conclusion:  string(res.Conclusion),
		Emoji:       res.Conclusion.Emoji(),
		Title:       res.Title,
		Summary:     res.Summary,
		SummaryHTML: RenderSummary(res.Summary),
	}
}

func toRecordResponses(records []model.ActionRecord) []RecordResponse {
	resp := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, RecordResponse{
			ID:       rec.ID,
			RunID:    rec.RunID,
			Rule:     rec.RuleName,
			Action:   rec.Action,
			Trigger:  string(rec.Trigger),
			HeadSHA:  rec.HeadSHA,
			Result:   toResultResponse(rec.Result),
			RanAt:    rec.RanAt.UTC().Format(time.RFC3339),
			Pull:     rec.PRNumber,
			RepoName: rec.RepoFullName,
		})
	}
	return resp
}
