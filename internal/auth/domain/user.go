package domain

// User is the identity attached to a verified session token. Sessions are
// issued by the external identity provider; this service only verifies them.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
