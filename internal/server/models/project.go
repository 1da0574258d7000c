package models

import "time"

// Project is read-only from the authorization core's point of view.
// HasActiveSubscription mirrors the subscription state of the project admin.
type Project struct {
	ID                    string
	Name                  string
	AdminID               string
	HasActiveSubscription bool
	CreatedAt             time.Time
}

// ProjectUser is the membership edge between a user and a project.
type ProjectUser struct {
	UserID    string
	ProjectID string
	CreatedAt time.Time
}
