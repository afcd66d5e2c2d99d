package httpapi

import (
	"net/http"

	restful "github.com/emicklei/go-restful"

	"github.com/vru6650/tracehost/internal/dapbridge"
	"github.com/vru6650/tracehost/internal/session"
	"github.com/vru6650/tracehost/internal/traceapi"
)

// DebugStartRequest is the body of POST /debug/start.
type DebugStartRequest struct {
	Language    string   `json:"language"`
	Code        string   `json:"code"`
	Breakpoints []uint32 `json:"breakpoints,omitempty"`
}

// DebugStartResponse is the response of POST /debug/start.
type DebugStartResponse struct {
	SessionID string `json:"sessionId,omitempty"`
	Error     bool   `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) doDebugStart(request *restful.Request, response *restful.Response) {
	var req DebugStartRequest
	if err := request.ReadEntity(&req); err != nil {
		writeError(response, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Language != "lang-b" {
		writeError(response, http.StatusBadRequest, "debug sessions are only supported for lang-b")
		return
	}
	if req.Code == "" {
		writeError(response, http.StatusBadRequest, "code is required")
		return
	}

	doc := s.runner.Run(request.Request.Context(), req.Code, req.Breakpoints)
	if doc.HasError() {
		response.WriteEntity(DebugStartResponse{Error: true, Message: doc.ErrorMessage()})
		return
	}

	sess := s.store.Create(doc.Events, req.Breakpoints)
	response.WriteEntity(DebugStartResponse{SessionID: sess.ID})
}

// DebugCommandRequest is the body of POST /debug/command.
type DebugCommandRequest struct {
	SessionID string  `json:"sessionId"`
	Command   string  `json:"command"`
	Line      *uint32 `json:"line,omitempty"`
	Condition string  `json:"condition,omitempty"`
}

// DebugCommandResponse is the response of POST /debug/command. Event is
// nil (JSON null) when the trace is empty.
type DebugCommandResponse struct {
	Event       *traceapi.TraceEvent `json:"event"`
	Done        bool                 `json:"done,omitempty"`
	Breakpoints []uint32             `json:"breakpoints,omitempty"`
}

func (s *Server) doDebugCommand(request *restful.Request, response *restful.Response) {
	var req DebugCommandRequest
	if err := request.ReadEntity(&req); err != nil {
		writeError(response, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := s.store.Lookup(req.SessionID)
	if sess == nil {
		writeError(response, http.StatusNotFound, "unknown session")
		return
	}

	res, err := sess.Handle(session.Command{Name: req.Command, Line: req.Line, Condition: req.Condition})
	if err != nil {
		writeError(response, http.StatusBadRequest, err.Error())
		return
	}

	if request.QueryParameter("dap") == "1" {
		response.WriteEntity(dapbridge.Translate(res.Event, res.Done))
		return
	}

	response.WriteEntity(DebugCommandResponse{Event: res.Event, Done: res.Done, Breakpoints: res.Breakpoints})
}
