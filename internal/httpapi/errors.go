package httpapi

import (
	restful "github.com/emicklei/go-restful"
)

// errorEnvelope is the HTTP-level error shape: request validation and
// routing failures only, never user-code runtime errors.
type errorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// writeError writes errorEnvelope as a JSON body, mirroring service/rest's
// writeError but JSON rather than plain text, since every other response
// on this boundary is JSON.
func writeError(response *restful.Response, statusCode int, message string) {
	response.WriteHeaderAndEntity(statusCode, errorEnvelope{StatusCode: statusCode, Message: message})
}
