package model

// Principal is an authenticated caller.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
