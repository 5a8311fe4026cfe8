package http

import (
	"errors"
	"net/http"
	"strings"
)

var errUnauthenticated = errors.New("unauthenticated")

// UserContext resolves the calling user for a request.
type UserContext interface {
	UserID(r *http.Request) (string, error)
}

// StaticUserContext treats every caller as one fixed user. It stands in until
// real authentication exists.
type StaticUserContext string

func (s StaticUserContext) UserID(*http.Request) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errUnauthenticated
	}
	return string(s), nil
}

// UserContextFunc adapts a function to UserContext.
type UserContextFunc func(r *http.Request) (string, error)

func (f UserContextFunc) UserID(r *http.Request) (string, error) {
	return f(r)
}
