package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entity is the provider-side counterpart of a user: one per user, created
// before any account can be connected.
type Entity struct {
	ID        string
	UserID    string
	Type      string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewEntity(userID, fullName, email, phone string) (Entity, error) {
	if userID == "" {
		return Entity{}, &ValidationError{Reason: "user id is required"}
	}
	if !strings.Contains(email, "@") {
		return Entity{}, &ValidationError{Reason: "valid email is required"}
	}

	first, last := splitName(fullName)
	now := time.Now().UTC()
	return Entity{
		ID:        "ent_" + uuid.NewString()[:8],
		UserID:    userID,
		Type:      "individual",
		FirstName: first,
		LastName:  last,
		Email:     email,
		Phone:     phone,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func splitName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "Unknown", "User"
	case 1:
		return parts[0], "User"
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
