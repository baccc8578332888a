package domain

import (
	"time"
)

type UserRole string

const (
	UserRoleMember UserRole = "MEMBER"
	UserRoleLeader UserRole = "LEADER"
	UserRoleUser   UserRole = "USER"
	UserRoleAdmin  UserRole = "ADMIN"
)

type User struct {
	ID     int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Email  string   `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Name   string   `gorm:"not null;column:name" json:"name"`
	Role   UserRole `gorm:"not null;column:user_role" json:"user_role"`
	Active bool     `gorm:"not null;column:active" json:"active"`
}

func (User) TableName() string { return "users" }

type Team struct {
	ID             string    `gorm:"primaryKey;column:id" json:"id"`
	Name           string    `gorm:"column:name" json:"name"`
	Description    string    `gorm:"column:description" json:"description"`
	InstallationID string    `gorm:"column:installation_id" json:"installation_id"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Team) TableName() string { return "team" }

type TeamMember struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Email  string `gorm:"column:email" json:"email"`
	Role   string `gorm:"column:role" json:"role"`
	TeamID string `gorm:"column:team_id;index" json:"team_id"`
}

func (TeamMember) TableName() string { return "team_member" }

// GitIdentity links an internal user to the git author identities seen on
// source-control events.
type GitIdentity struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex;column:user_id" json:"user_id"`
	GitLogin  string    `gorm:"column:git_login" json:"git_login"`
	GitEmail  string    `gorm:"column:git_email" json:"git_email"`
	GitURL    string    `gorm:"column:git_url" json:"git_url"`
	AvatarURL string    `gorm:"column:avatar_url" json:"avatar_url"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (GitIdentity) TableName() string { return "git_info" }

// Weekday is the 0-based day offset inside the report span, not a calendar
// weekday. Offset 0 is the earliest day; the last offset is the anchor day
// the report was built on.
type Weekday int

// DailyUserActivity is one cell row of the 7xN report matrix. The table is
// replaced wholesale on every report run.
type DailyUserActivity struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"not null;index;column:user_id" json:"user_id"`
	ReportDate time.Time `gorm:"not null;column:report_date" json:"report_date"`
	Day        Weekday   `gorm:"not null;column:day" json:"day"`

	TeamsPost  int `gorm:"not null;default:0;column:teams_post" json:"teams_post"`
	TeamsReply int `gorm:"not null;default:0;column:teams_reply" json:"teams_reply"`

	EmailSend    int `gorm:"not null;default:0;column:email_send" json:"email_send"`
	EmailReceive int `gorm:"not null;default:0;column:email_receive" json:"email_receive"`

	DocsDocx int `gorm:"not null;default:0;column:docs_docx" json:"docs_docx"`
	DocsXlsx int `gorm:"not null;default:0;column:docs_xlsx" json:"docs_xlsx"`
	DocsPptx int `gorm:"not null;default:0;column:docs_pptx" json:"docs_pptx"`
	DocsEtc  int `gorm:"not null;default:0;column:docs_etc" json:"docs_etc"`

	GitCommit      int `gorm:"not null;default:0;column:git_commit" json:"git_commit"`
	GitPullRequest int `gorm:"not null;default:0;column:git_pull_request" json:"git_pull_request"`
	GitIssue       int `gorm:"not null;default:0;column:git_issue" json:"git_issue"`
}

func (DailyUserActivity) TableName() string { return "daily_user_activity" }
