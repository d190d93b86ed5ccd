package httpx

import "net/http"

const (
	StatusOK              = http.StatusOK                  // Successful request
	StatusBadRequest      = http.StatusBadRequest          // Validation or malformed input
	StatusNotFound        = http.StatusNotFound            // Resource not found
	StatusTooManyRequests = http.StatusTooManyRequests     // Rate limiting or quotas
	StatusInternalError   = http.StatusInternalServerError // Unexpected server error
)
