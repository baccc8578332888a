package normalize

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// Normalizer turns connector entries into uniform records ready for upload.
// Record IDs derive from the entry's natural key, so normalizing the same
// entry twice produces the same IDs and the upload stays idempotent.
type Normalizer struct {
	log     *logger.Logger
	chunker Chunker
}

func New(log *logger.Logger) (*Normalizer, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	l := log.With("service", "Normalizer")
	size := utils.GetEnvAsInt("CHUNK_SIZE", defaultChunkSize, l)
	overlap := utils.GetEnvAsInt("CHUNK_OVERLAP", defaultChunkOverlap, l)
	return &Normalizer{log: l, chunker: NewChunker(size, overlap)}, nil
}

// Normalize converts entries into records. Entries whose text collapses to
// nothing are dropped; chat posts additionally expand their replies.
func (n *Normalizer) Normalize(entries []domain.ActivityEntry) []domain.Record {
	var out []domain.Record
	for _, entry := range entries {
		out = append(out, n.normalizeOne(entry)...)
		if post, ok := entry.(domain.ChatPostEntry); ok {
			for _, reply := range post.Replies {
				out = append(out, n.normalizeOne(reply)...)
			}
		}
	}
	return out
}

func (n *Normalizer) normalizeOne(entry domain.ActivityEntry) []domain.Record {
	text, payload := n.render(entry)
	if strings.TrimSpace(text) == "" {
		n.log.Debug("entry rendered empty, dropping",
			"source", entry.Source(), "key", entry.NaturalKey())
		return nil
	}

	chunks := n.chunker.Split(text)
	if _, ok := entry.(domain.ReadmeEntry); ok {
		// a README keeps a single live point per repo; chunking it would
		// leave stale higher-index points behind when the file shrinks
		chunks = []string{text}
	}
	records := make([]domain.Record, 0, len(chunks))
	for idx, chunk := range chunks {
		chunkPayload := make(map[string]any, len(payload)+2)
		for k, v := range payload {
			chunkPayload[k] = v
		}
		chunkPayload["source"] = string(entry.Source())
		chunkPayload["chunk_index"] = idx
		chunkPayload["chunk_total"] = len(chunks)
		records = append(records, domain.Record{
			ID:      domain.RecordID(entry.Source(), entry.NaturalKey(), idx),
			Text:    chunk,
			Payload: chunkPayload,
		})
	}
	return records
}

// render produces the searchable text and the base payload for one entry.
// Every payload carries author, author_raw, date, and type.
func (n *Normalizer) render(entry domain.ActivityEntry) (string, map[string]any) {
	switch e := entry.(type) {
	case domain.CommitEntry:
		text := fmt.Sprintf("Commit in %s: %s", e.Repo, strings.TrimSpace(e.Message))
		return text, basePayload(e.Author, e.Date, "commit", map[string]any{
			"repo": e.Repo,
			"sha":  e.SHA,
		})

	case domain.PullRequestEntry:
		var b strings.Builder
		fmt.Fprintf(&b, "Pull request #%d in %s: %s", e.Number, e.Repo, e.Title)
		if body := strings.TrimSpace(e.Body); body != "" {
			b.WriteString("\n")
			b.WriteString(body)
		}
		return b.String(), basePayload(e.Author, e.CreatedAt, "pull_request", map[string]any{
			"repo":   e.Repo,
			"number": e.Number,
			"state":  e.State,
		})

	case domain.IssueEntry:
		text := fmt.Sprintf("Issue #%d in %s: %s", e.Number, e.Repo, e.Title)
		return text, basePayload(e.Author, e.CreatedAt, "issue", map[string]any{
			"repo":   e.Repo,
			"number": e.Number,
			"state":  e.State,
		})

	case domain.ReadmeEntry:
		return e.Content, basePayload(domain.Author{}, e.FetchedAt, "readme", map[string]any{
			"repo":         e.Repo,
			"content_hash": e.ContentHash,
			"html_url":     e.HTMLURL,
			"download_url": e.DownloadURL,
		})

	case domain.ChatPostEntry:
		var parts []string
		subject := strings.TrimSpace(e.Subject)
		if subject == "" {
			subject = strings.TrimSpace(e.Summary)
		}
		if subject != "" {
			parts = append(parts, subject)
		}
		if body := StripHTML(e.Body); body != "" {
			parts = append(parts, body)
		}
		parts = append(parts, e.CardText...)
		for _, name := range e.Attachments {
			parts = append(parts, "Attachment: "+name)
		}
		extra := map[string]any{"message_id": e.MessageID}
		if len(e.Attachments) > 0 {
			extra["attachments"] = e.Attachments
		}
		return strings.Join(parts, "\n"), basePayload(e.Author, e.Date, "post", extra)

	case domain.ChatReplyEntry:
		var b strings.Builder
		if parent := StripHTML(e.ParentBody); parent != "" {
			fmt.Fprintf(&b, "In reply to: %s\n", snippet(parent, 120))
		}
		b.WriteString(StripHTML(e.Body))
		for _, name := range e.Attachments {
			b.WriteString("\nAttachment: " + name)
		}
		return b.String(), basePayload(e.Author, e.Date, "reply", map[string]any{
			"message_id": e.MessageID,
			"parent_id":  e.ParentID,
		})

	case domain.EmailMessageEntry:
		var parts []string
		if s := strings.TrimSpace(e.Subject); s != "" {
			parts = append(parts, s)
		}
		if body := StripHTML(e.Body); body != "" {
			parts = append(parts, body)
		}
		if len(e.Attachments) > 0 {
			parts = append(parts, "Attachments: "+strings.Join(e.Attachments, ", "))
		}
		kind := "receive"
		if e.Folder == "sent" {
			kind = "send"
		}
		extra := map[string]any{
			"message_id": e.MessageID,
			"mailbox":    e.Mailbox,
		}
		if e.Sender != "" {
			extra["sender"] = e.Sender
		}
		if len(e.Receivers) > 0 {
			extra["receivers"] = e.Receivers
		}
		if e.ConversationID != "" {
			extra["conversation_id"] = e.ConversationID
		}
		if len(e.Attachments) > 0 {
			extra["attachments"] = e.Attachments
		}
		return strings.Join(parts, "\n"), basePayload(e.Author, e.Date, kind, extra)

	case domain.DriveFileEntry:
		payload := map[string]any{
			"drive_id": e.DriveID,
			"file_id":  e.FileID,
			"filename": e.Filename,
			"author":   e.Authors,
			"date":     formatDate(e.LastModified),
			"type":     docType(e.Filename),
		}
		if e.WebURL != "" {
			payload["web_url"] = e.WebURL
		}
		text := e.Filename
		if strings.TrimSpace(e.Content) != "" {
			text = e.Filename + "\n" + e.Content
		}
		return text, payload

	default:
		n.log.Warn("unknown entry kind, dropping", "source", entry.Source(), "key", entry.NaturalKey())
		return "", nil
	}
}

func basePayload(author domain.Author, ts time.Time, kind string, extra map[string]any) map[string]any {
	payload := map[string]any{
		"author": author.ID,
		"date":   formatDate(ts),
		"type":   kind,
	}
	if author.Raw != "" {
		payload["author_raw"] = author.Raw
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

func formatDate(ts time.Time) string {
	return ts.In(utils.CanonicalLocation()).Format(time.RFC3339)
}

// snippet trims s to at most max runes, marking the cut with an ellipsis.
func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// docType buckets a filename by extension into the categories the report
// counts. Anything outside the named formats lands in the remainder bucket
// implicitly, so it just keeps its extension.
func docType(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "file"
	}
	return ext
}
