package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by the auth middlewares.
const (
	KeyContactID = "contact_id" // uint64, from an opaque access token
	KeySubject   = "subject"    // string, from a service-identity JWT
	KeyRole      = "role"       // string, from a service-identity JWT
)

// Service roles accepted on management routes.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
)

// ContactID returns the authenticated contact, 0 when there is none.
func ContactID(c echo.Context) uint64 {
	id, _ := c.Get(KeyContactID).(uint64)
	return id
}

// Subject returns the service caller named by the JWT "sub" claim.
func Subject(c echo.Context) string {
	s, _ := c.Get(KeySubject).(string)
	return s
}

// requester identifies the caller for rate-limit keys: the contact, the
// service subject, or "anon".
func requester(c echo.Context) string {
	if id := ContactID(c); id != 0 {
		return "contact:" + strconv.FormatUint(id, 10)
	}
	if s := Subject(c); s != "" {
		return "svc:" + s
	}
	return "anon"
}
