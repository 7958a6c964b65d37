package fabric

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrInvalidKey   = errors.New("fabric: invalid distribution key")
	ErrInvalidName  = errors.New("fabric: invalid distribution file name")
	ErrFileNotFound = errors.New("fabric: file not found")
	ErrNoServerURL  = errors.New("fabric: server url missing")
)

// APIError is the error payload the fabric returns on non-2xx responses.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fabric api error: %s - %s", e.Code, e.Message)
}

// handleAPIError folds the transport error and the API error state of a
// response into a single error, tagged with the operation that failed.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		var apiErr APIError
		if jsonErr := json.Unmarshal(resp.Bytes(), &apiErr); jsonErr == nil && apiErr.Code != "" {
			return fmt.Errorf("%s: %w", operation, &apiErr)
		}
		return fmt.Errorf("api error: %s: %s %s", operation, resp.Status, resp.String())
	}

	return nil
}
