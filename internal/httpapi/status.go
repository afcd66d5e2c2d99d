package httpapi

import (
	restful "github.com/emicklei/go-restful"

	"github.com/vru6650/tracehost/pkg/logflags"
)

// StatusResponse is the response of GET /status: which subsystems have
// debug-level structured logging enabled, per pkg/logflags.Setup.
type StatusResponse struct {
	Instrumenter bool `json:"instrumenter"`
	Evaluator    bool `json:"evaluator"`
	Tracer       bool `json:"tracer"`
	Session      bool `json:"session"`
	HTTP         bool `json:"http"`
}

func (s *Server) doStatus(request *restful.Request, response *restful.Response) {
	response.WriteEntity(StatusResponse{
		Instrumenter: logflags.Instrumenter(),
		Evaluator:    logflags.Evaluator(),
		Tracer:       logflags.Tracer(),
		Session:      logflags.Session(),
		HTTP:         logflags.HTTP(),
	})
}
