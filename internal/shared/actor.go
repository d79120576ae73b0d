package shared

import (
	"net/http"
	"strconv"
)

// ActorHeader carries the acting admin's user ID, set by the upstream
// gateway after it authenticates the request. Identity verification is
// delegated; the ID is used for audit attribution only.
const ActorHeader = "X-Actor-ID"

// ActorID extracts the acting admin's ID from the request, or 0 when absent.
func ActorID(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.Header.Get(ActorHeader), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
