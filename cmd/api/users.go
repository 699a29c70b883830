package main

import (
	"net/http"

	"ecommerce/internal/domain/users"
)

type userKey string

const userCtx userKey = "user"

func getUserFromContext(r *http.Request) *users.User {
	if user, ok := r.Context().Value(userCtx).(*users.User); ok {
		return user
	}
	return nil
}

// userIdentity feeds the session inspector.
func userIdentity(r *http.Request) (string, bool) {
	if user := getUserFromContext(r); user != nil {
		return user.Email, true
	}
	return "", false
}
