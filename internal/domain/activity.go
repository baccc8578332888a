package domain

import (
	"fmt"
	"time"
)

// Source is the provider category an activity entry came from. One vector
// store collection exists per source.
type Source string

const (
	SourceGit    Source = "git"
	SourceReadme Source = "readme"
	SourceTeams  Source = "teams"
	SourceEmail  Source = "email"
	SourceDocs   Source = "docs"
)

// CollectionFor maps a source to the vector store collection holding its
// records. One collection per source keeps filters cheap and lets a flush
// drop a single source without touching the others.
func CollectionFor(s Source) string {
	return "activity_" + string(s)
}

// Author is the outcome of identity resolution for a single entry. ID is the
// internal user id, or 0 when no keyspace matched; Raw keeps the external
// identifier (email, login, display name) so the original attribution is
// never lost even when it counts as unknown in aggregates.
type Author struct {
	ID  int64
	Raw string
}

// ActivityEntry is the closed set of per-source fetch results. Entries are
// built once per connector cycle, handed to the normalizer, and discarded.
type ActivityEntry interface {
	Source() Source
	// NaturalKey is the provider-supplied identifier used for de-duplication
	// and for deterministic record IDs.
	NaturalKey() string
	OccurredAt() time.Time
}

type CommitEntry struct {
	Repo    string
	SHA     string
	Message string
	Date    time.Time
	Author  Author
}

func (CommitEntry) Source() Source          { return SourceGit }
func (e CommitEntry) NaturalKey() string    { return e.Repo + "@" + e.SHA }
func (e CommitEntry) OccurredAt() time.Time { return e.Date }

type PullRequestEntry struct {
	Repo      string
	Number    int
	Title     string
	Body      string
	State     string
	CreatedAt time.Time
	Author    Author
}

func (PullRequestEntry) Source() Source { return SourceGit }
func (e PullRequestEntry) NaturalKey() string {
	return fmt.Sprintf("%s#pr-%d", e.Repo, e.Number)
}
func (e PullRequestEntry) OccurredAt() time.Time { return e.CreatedAt }

type IssueEntry struct {
	Repo      string
	Number    int
	Title     string
	State     string
	CreatedAt time.Time
	Author    Author
}

func (IssueEntry) Source() Source { return SourceGit }
func (e IssueEntry) NaturalKey() string {
	return fmt.Sprintf("%s#issue-%d", e.Repo, e.Number)
}
func (e IssueEntry) OccurredAt() time.Time { return e.CreatedAt }

// ReadmeEntry is only emitted when the content fingerprint differs from the
// one stored for the repository.
type ReadmeEntry struct {
	Repo        string
	Content     string
	ContentHash string
	HTMLURL     string
	DownloadURL string
	FetchedAt   time.Time
}

func (ReadmeEntry) Source() Source          { return SourceReadme }
func (e ReadmeEntry) NaturalKey() string    { return e.Repo }
func (e ReadmeEntry) OccurredAt() time.Time { return e.FetchedAt }

type ChatReplyEntry struct {
	MessageID   string
	ParentID    string
	ParentBody  string
	Body        string
	Date        time.Time
	Author      Author
	Attachments []string
}

func (ChatReplyEntry) Source() Source          { return SourceTeams }
func (e ChatReplyEntry) NaturalKey() string    { return e.MessageID }
func (e ChatReplyEntry) OccurredAt() time.Time { return e.Date }

type ChatPostEntry struct {
	MessageID   string
	Subject     string
	Summary     string
	Body        string
	CardText    []string
	Date        time.Time
	Author      Author
	Attachments []string
	Replies     []ChatReplyEntry
}

func (ChatPostEntry) Source() Source          { return SourceTeams }
func (e ChatPostEntry) NaturalKey() string    { return e.MessageID }
func (e ChatPostEntry) OccurredAt() time.Time { return e.Date }

type EmailMessageEntry struct {
	MessageID      string
	Mailbox        string
	// Folder is "inbox" or "sent"; it decides whether the message counts as
	// received or sent for the mailbox owner.
	Folder         string
	Sender         string
	Receivers      []string
	Subject        string
	Body           string
	ConversationID string
	Date           time.Time
	Author         Author
	Attachments    []string
}

func (EmailMessageEntry) Source() Source          { return SourceEmail }
func (e EmailMessageEntry) NaturalKey() string    { return e.Mailbox + "/" + e.MessageID }
func (e EmailMessageEntry) OccurredAt() time.Time { return e.Date }

type DriveFileEntry struct {
	DriveID      string
	FileID       string
	Filename     string
	MimeType     string
	Size         int64
	WebURL       string
	LastModified time.Time
	// Authors covers the creator plus every version editor.
	Authors []int64
	Content string
}

func (DriveFileEntry) Source() Source          { return SourceDocs }
func (e DriveFileEntry) NaturalKey() string    { return e.DriveID + "/" + e.FileID }
func (e DriveFileEntry) OccurredAt() time.Time { return e.LastModified }
