package server

import (
	"net/http"
	"strings"

	"github.com/emrgen/revision/internal/service"
)

const (
	userIDHeader   = "X-User-Id"
	userNameHeader = "X-User-Name"
)

// userFromRequest reads the caller identity set by the authenticating proxy
// in front of the service. Requests without one are recorded as the system
// user.
func userFromRequest(r *http.Request) service.User {
	id := strings.TrimSpace(r.Header.Get(userIDHeader))
	if id == "" {
		return service.SystemUser
	}

	name := strings.TrimSpace(r.Header.Get(userNameHeader))
	if name == "" {
		name = id
	}

	return service.User{ID: id, Name: name}
}
