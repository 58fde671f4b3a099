package models

import "time"

type User struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	Name            string    `json:"name" db:"name"`
	PushoverUserKey *string   `json:"pushover_user_key" db:"pushover_user_key"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
