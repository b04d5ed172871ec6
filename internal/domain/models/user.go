package models

import "time"

// User is an account row. Staff accounts review and publish; non-staff
// accounts hold applications.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	CreatedDate  time.Time `json:"created_date"`
}

// UserSession is the authenticated identity carried through request context.
type UserSession struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsStaff bool   `json:"is_staff"`
}

// Notification is a delivered message row (the decision-published sink
// writes these).
type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	IsRead      bool      `json:"is_read"`
	CreatedDate time.Time `json:"created_date"`
}

// AttendanceRecord marks an application as attending after the confirmation
// step is approved.
type AttendanceRecord struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// UploadedFile is the verification state of an externally stored upload.
type UploadedFile struct {
	ID          string    `json:"id"`
	Verified    bool      `json:"verified"`
	CreatedDate time.Time `json:"created_date"`
}
