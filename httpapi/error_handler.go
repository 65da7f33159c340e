package httpapi

import (
	"errors"
	"net/http"

	"github.com/korylprince/streamchat/api"
)

//ErrorResponse represents an HTTP error. For validation failures Fields holds the messages for
//each invalid field, keyed by its JSON path.
type ErrorResponse struct {
	Code   int                 `json:"code"`
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

//handleError returns a handlerResponse response for the given code
func handleError(code int, err error) *handlerResponse {
	return &handlerResponse{Code: code, Body: &ErrorResponse{Code: code, Error: http.StatusText(code)}, Err: err}
}

//notFoundHandler returns a 404 handlerResponse
func notFoundHandler(w http.ResponseWriter, r *http.Request) *handlerResponse {
	return handleError(http.StatusNotFound, errors.New("Could not find handler"))
}

//methodNotAllowedHandler returns a 405 handlerResponse
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) *handlerResponse {
	return handleError(http.StatusMethodNotAllowed, errors.New("Method not allowed"))
}

//checkAPIError checks an api.Error and returns a handlerResponse for it, or nil if there was no error
func checkAPIError(err error) *handlerResponse {
	if err == nil {
		return nil
	}

	var e *api.Error
	if !errors.As(err, &e) {
		return handleError(http.StatusInternalServerError, err)
	}

	switch e.Type {
	case api.ErrorTypeUser:
		resp := handleError(http.StatusBadRequest, err)
		resp.Body.(*ErrorResponse).Fields = e.Fields
		return resp
	case api.ErrorTypeUpstream:
		return handleError(http.StatusBadGateway, err)
	default:
		return handleError(http.StatusInternalServerError, err)
	}
}
