package arango

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// ArangoDB error numbers the client reacts to.
const (
	ErrNumCollectionNotFound = 1203
	ErrNumDocumentNotFound   = 1202
	ErrNumDuplicateName      = 1207
)

// Error is an error response from the server.
type Error struct {
	Status  int
	Num     int
	Message string
}

func (e *Error) Error() string {
	if e.Num != 0 {
		return fmt.Sprintf("arangodb: %s (status %d, errorNum %d)", e.Message, e.Status, e.Num)
	}
	return fmt.Sprintf("arangodb: %s (status %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is a missing collection or document.
func IsNotFound(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status == http.StatusNotFound || ae.Num == ErrNumCollectionNotFound || ae.Num == ErrNumDocumentNotFound
}

// IsDuplicate reports whether err is a name conflict.
func IsDuplicate(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && (ae.Num == ErrNumDuplicateName || ae.Status == http.StatusConflict)
}

// checkResponse turns an error status or an {"error": true} body into an
// *Error.
func checkResponse(resp *resty.Response) error {
	body := gjson.ParseBytes(resp.Body())
	if resp.IsSuccess() && !body.Get("error").Bool() {
		return nil
	}
	e := &Error{
		Status:  resp.StatusCode(),
		Num:     int(body.Get("errorNum").Int()),
		Message: body.Get("errorMessage").String(),
	}
	if code := body.Get("code").Int(); code != 0 && e.Status < 400 {
		e.Status = int(code)
	}
	if e.Message == "" {
		e.Message = http.StatusText(e.Status)
	}
	return e
}
