package domain

type UserID string

// Identity is an already verified user. It is never mutated by this service.
type Identity struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
}
