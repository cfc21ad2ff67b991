package main

import "time"

// User is an account as the API sees it. Role holds the wire value
// (admin, user, moderator).
type User struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
