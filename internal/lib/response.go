// Package response holds the error envelope shared by every JSON endpoint
// and by the client that reads it.
package response

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/render"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: msg,
		},
	})
}

// ReadError decodes an error envelope. Bodies that are not one, such as a
// proxy's HTML page, yield code "unknown" and the status text.
func ReadError(status int, body io.Reader) ErrorBody {
	var resp ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil || resp.Error.Code == "" {
		return ErrorBody{Code: "unknown", Message: http.StatusText(status)}
	}
	return resp.Error
}
