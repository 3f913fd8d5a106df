package models

import "time"

// Gender is the self-declared gender of a user
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the supported values
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// User represents a registered user
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	UserID        string    `json:"user_id"`
	PasswordHash  string    `json:"-"`
	Nationality   string    `json:"nationality"`
	Gender        Gender    `json:"gender"`
	Age           int       `json:"age"`
	ContactMethod string    `json:"contact_method"`
	PushToken     *string   `json:"push_token,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Profile is the part of a user shown to a match counterpart.
// ContactMethod stays nil until disclosure is allowed.
type Profile struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	UserID        string  `json:"user_id"`
	Nationality   string  `json:"nationality"`
	Gender        Gender  `json:"gender"`
	Age           int     `json:"age"`
	ContactMethod *string `json:"contact_method,omitempty"`
}

// Profile returns the user's profile with the contact method withheld
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		UserID:      u.UserID,
		Nationality: u.Nationality,
		Gender:      u.Gender,
		Age:         u.Age,
	}
}

// Contact is what gets disclosed once both participants agreed
type Contact struct {
	Username      string `json:"username"`
	UserID        string `json:"user_id"`
	ContactMethod string `json:"contact_method"`
}

// Contact returns the disclosable contact fields of the user
func (u *User) Contact() Contact {
	return Contact{
		Username:      u.Username,
		UserID:        u.UserID,
		ContactMethod: u.ContactMethod,
	}
}

// Place represents an event location users can queue at
type Place struct {
	ID        string     `json:"id" yaml:"-"`
	Title     string     `json:"title" yaml:"title"`
	Addr      string     `json:"addr" yaml:"addr"`
	StartsAt  time.Time  `json:"starts_at" yaml:"starts_at"`
	EndsAt    *time.Time `json:"ends_at,omitempty" yaml:"ends_at,omitempty"`
	Lat       float64    `json:"lat" yaml:"lat"`
	Lng       float64    `json:"lng" yaml:"lng"`
	Category  string     `json:"category" yaml:"category"`
	Image     *string    `json:"image,omitempty" yaml:"image,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"-"`
}

// QueueStatus is the state of a queue entry
type QueueStatus string

const (
	QueueActive  QueueStatus = "active"
	QueueMatched QueueStatus = "matched"
	// QueueRemoved is reserved; withdrawal deletes the entry instead.
	QueueRemoved QueueStatus = "removed"
)

// QueueEntry is a user's standing request to be matched at a place
type QueueEntry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	PlaceID   string      `json:"place_id"`
	Status    QueueStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
