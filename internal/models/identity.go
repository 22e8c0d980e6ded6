package models

// Identity is an authenticated principal issued by the hosted auth provider.
// It is read-only from this application's point of view.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
