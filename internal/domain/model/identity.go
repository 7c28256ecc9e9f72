package model

// Identity is a user directory entry. Only the fields needed to mint an
// access token are carried.
type Identity struct {
	ID    string
	Email string
}
