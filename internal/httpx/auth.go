package httpx

import "net/http"

// userID pulls the authenticated user identity from the request. Session
// verification happens upstream (gateway); an empty header means there is
// no user context and every cart operation must fail.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}
