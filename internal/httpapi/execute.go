package httpapi

import (
	"net/http"

	restful "github.com/emicklei/go-restful"

	"github.com/vru6650/tracehost/internal/langa"
	"github.com/vru6650/tracehost/internal/traceapi"
)

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExecuteResponse is the response of POST /execute. Error is always
// present; Output and Message are only populated when relevant.
type ExecuteResponse struct {
	Events  []traceapi.TraceEvent `json:"events"`
	Error   bool                  `json:"error"`
	Output  string                `json:"output,omitempty"`
	Message string                `json:"message,omitempty"`
}

func (s *Server) doExecute(request *restful.Request, response *restful.Response) {
	var req ExecuteRequest
	if err := request.ReadEntity(&req); err != nil {
		writeError(response, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Language == "" || req.Code == "" {
		writeError(response, http.StatusBadRequest, "language and code are required")
		return
	}

	switch req.Language {
	case "lang-a":
		s.executeLangA(request, response, req.Code)
	case "lang-b":
		s.executeLangB(request, response, req.Code)
	default:
		writeError(response, http.StatusBadRequest, "unsupported language")
	}
}

// executeLangA instruments code, then evaluates the instrumented program.
// A parse failure (InstrumentationError) is still a payload-level failure,
// not an HTTP error: HTTP 200 with error=true.
func (s *Server) executeLangA(_ *restful.Request, response *restful.Response, code string) {
	instrumented, err := langa.Instrument(code)
	if err != nil {
		response.WriteEntity(ExecuteResponse{Events: []traceapi.TraceEvent{}, Error: true, Message: err.Error()})
		return
	}
	doc := langa.Evaluate(instrumented, s.cfg.EvaluatorDeadlineMS)
	response.WriteEntity(ExecuteResponse{
		Events:  nonNilEvents(doc.Events),
		Error:   doc.HasError(),
		Message: doc.ErrorMessage(),
	})
}

func (s *Server) executeLangB(request *restful.Request, response *restful.Response, code string) {
	doc := s.runner.Run(request.Request.Context(), code, nil)
	response.WriteEntity(ExecuteResponse{
		Events:  nonNilEvents(doc.Events),
		Error:   doc.HasError(),
		Output:  doc.Stdout,
		Message: doc.ErrorMessage(),
	})
}

// nonNilEvents returns events, or an empty (never nil) slice so the JSON
// response always carries "events": [] rather than "events": null.
func nonNilEvents(events []traceapi.TraceEvent) []traceapi.TraceEvent {
	if events == nil {
		return []traceapi.TraceEvent{}
	}
	return events
}
