package rbac

import "time"

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability such as APPROVE_PO.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// User is the subset of a user record needed to build an actor.
type User struct {
	ID       int64
	Name     string
	Email    string
	IsActive bool
}
