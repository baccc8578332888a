package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New(logger.Nop())
	if err != nil {
		t.Fatalf("new normalizer: %v", err)
	}
	return n
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<div><p>hello <b>world</b></p>\n<br/>bye</div>")
	if got != "hello world bye" {
		t.Fatalf("strip: want=%q got=%q", "hello world bye", got)
	}
	if decoded := StripHTML("a &amp; b"); decoded != "a & b" {
		t.Fatalf("entities should decode: got=%q", decoded)
	}

	if got := StripHTML(""); got != "" {
		t.Fatalf("empty input: got=%q", got)
	}
	if got := StripHTML("plain text"); got != "plain text" {
		t.Fatalf("plain text should pass through: got=%q", got)
	}
}

func TestNormalizeCommitPayload(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	records := n.Normalize([]domain.ActivityEntry{domain.CommitEntry{
		Repo:    "acme/svc",
		SHA:     "abc123",
		Message: "fix the build",
		Date:    when,
		Author:  domain.Author{ID: 7, Raw: "alice@dev.example.com"},
	}})
	if len(records) != 1 {
		t.Fatalf("records: want=1 got=%d", len(records))
	}

	rec := records[0]
	if rec.ID != domain.RecordID(domain.SourceGit, "acme/svc@abc123", 0) {
		t.Fatalf("record id not derived from natural key: %s", rec.ID)
	}
	if rec.Payload["author"] != int64(7) {
		t.Fatalf("author: want=7 got=%v", rec.Payload["author"])
	}
	if rec.Payload["author_raw"] != "alice@dev.example.com" {
		t.Fatalf("author_raw: got=%v", rec.Payload["author_raw"])
	}
	if rec.Payload["type"] != "commit" {
		t.Fatalf("type: want=commit got=%v", rec.Payload["type"])
	}
	if rec.Payload["source"] != "git" {
		t.Fatalf("source: want=git got=%v", rec.Payload["source"])
	}
	if !strings.Contains(rec.Text, "fix the build") {
		t.Fatalf("text should carry the message: %q", rec.Text)
	}
}

func TestNormalizeEmailDirection(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	entries := []domain.ActivityEntry{
		domain.EmailMessageEntry{
			MessageID: "in1", Mailbox: "alice@example.com", Folder: "inbox",
			Subject: "hello", Date: when, Author: domain.Author{ID: 1, Raw: "alice@example.com"},
		},
		domain.EmailMessageEntry{
			MessageID: "out1", Mailbox: "alice@example.com", Folder: "sent",
			Subject: "re: hello", Date: when, Author: domain.Author{ID: 1, Raw: "alice@example.com"},
		},
	}
	records := n.Normalize(entries)
	if len(records) != 2 {
		t.Fatalf("records: want=2 got=%d", len(records))
	}
	if records[0].Payload["type"] != "receive" {
		t.Fatalf("inbox type: want=receive got=%v", records[0].Payload["type"])
	}
	if records[1].Payload["type"] != "send" {
		t.Fatalf("sent type: want=send got=%v", records[1].Payload["type"])
	}
}

func TestNormalizeExpandsChatReplies(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	post := domain.ChatPostEntry{
		MessageID: "m1",
		Body:      "<p>parent body</p>",
		Date:      when,
		Author:    domain.Author{ID: 1, Raw: "alice@example.com"},
		Replies: []domain.ChatReplyEntry{{
			MessageID:  "r1",
			ParentID:   "m1",
			ParentBody: "<p>parent body</p>",
			Body:       "<p>the reply</p>",
			Date:       when,
			Author:     domain.Author{ID: 2, Raw: "bob@example.com"},
		}},
	}
	records := n.Normalize([]domain.ActivityEntry{post})
	if len(records) != 2 {
		t.Fatalf("post plus reply: want=2 records got=%d", len(records))
	}
	if records[0].Payload["type"] != "post" || records[1].Payload["type"] != "reply" {
		t.Fatalf("types: got=%v and %v", records[0].Payload["type"], records[1].Payload["type"])
	}
	if records[1].Payload["parent_id"] != "m1" {
		t.Fatalf("reply parent: got=%v", records[1].Payload["parent_id"])
	}
	if !strings.Contains(records[1].Text, "the reply") {
		t.Fatalf("reply text missing body: %q", records[1].Text)
	}
}

func TestNormalizeReadmeStaysSingleRecord(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	records := n.Normalize([]domain.ActivityEntry{domain.ReadmeEntry{
		Repo:        "acme/svc",
		Content:     strings.Repeat("readme text ", 100),
		ContentHash: "deadbeef",
		FetchedAt:   when,
	}})
	if len(records) != 1 {
		t.Fatalf("readme records: want=1 got=%d", len(records))
	}
	rec := records[0]
	if rec.ID != domain.RecordID(domain.SourceReadme, "acme/svc", 0) {
		t.Fatalf("readme id must derive from the repo alone: %s", rec.ID)
	}
	if rec.Payload["chunk_total"] != 1 {
		t.Fatalf("readme chunk total: want=1 got=%v", rec.Payload["chunk_total"])
	}
	if rec.Payload["content_hash"] != "deadbeef" {
		t.Fatalf("content hash: got=%v", rec.Payload["content_hash"])
	}
}

func TestNormalizeTruncatesLongReplyParent(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	records := n.Normalize([]domain.ActivityEntry{domain.ChatReplyEntry{
		MessageID:  "r1",
		ParentID:   "m1",
		ParentBody: strings.Repeat("번역 parent text ", 50),
		Body:       "short answer",
		Date:       when,
		Author:     domain.Author{ID: 2, Raw: "bob@example.com"},
	}})
	if len(records) != 1 {
		t.Fatalf("records: want=1 got=%d", len(records))
	}
	firstLine := strings.SplitN(records[0].Text, "\n", 2)[0]
	if !strings.HasPrefix(firstLine, "In reply to: ") || !strings.HasSuffix(firstLine, "...") {
		t.Fatalf("parent context line malformed: %q", firstLine)
	}
	if got := len([]rune(firstLine)); got > len("In reply to: ")+123 {
		t.Fatalf("parent context not truncated: %d runes", got)
	}
}

func TestNormalizeRendersAttachmentLines(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	records := n.Normalize([]domain.ActivityEntry{
		domain.ChatPostEntry{
			MessageID:   "m1",
			Body:        "<p>see attached</p>",
			Attachments: []string{"plan.pdf", "notes.docx"},
			Date:        when,
			Author:      domain.Author{ID: 1, Raw: "alice@example.com"},
		},
		domain.EmailMessageEntry{
			MessageID:   "e1",
			Mailbox:     "alice@example.com",
			Folder:      "inbox",
			Subject:     "weekly numbers",
			Body:        "<p>fyi</p>",
			Attachments: []string{"report.xlsx"},
			Date:        when,
			Author:      domain.Author{ID: 1, Raw: "alice@example.com"},
		},
	})
	if len(records) != 2 {
		t.Fatalf("records: want=2 got=%d", len(records))
	}
	if !strings.Contains(records[0].Text, "Attachment: plan.pdf") ||
		!strings.Contains(records[0].Text, "Attachment: notes.docx") {
		t.Fatalf("chat attachment lines missing: %q", records[0].Text)
	}
	if !strings.Contains(records[1].Text, "Attachments: report.xlsx") {
		t.Fatalf("email attachment line missing: %q", records[1].Text)
	}
}

func TestNormalizePostFallsBackToSummary(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	records := n.Normalize([]domain.ActivityEntry{domain.ChatPostEntry{
		MessageID: "m1",
		Summary:   "deploy announcement",
		Body:      "<p>rolling out at noon</p>",
		Date:      when,
		Author:    domain.Author{ID: 1, Raw: "alice@example.com"},
	}})
	if len(records) != 1 {
		t.Fatalf("records: want=1 got=%d", len(records))
	}
	if !strings.HasPrefix(records[0].Text, "deploy announcement\n") {
		t.Fatalf("summary should head the text when subject is empty: %q", records[0].Text)
	}
}

func TestNormalizeChunksLongDocs(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	records := n.Normalize([]domain.ActivityEntry{domain.DriveFileEntry{
		DriveID:      "d1",
		FileID:       "f1",
		Filename:     "spec.docx",
		LastModified: when,
		Authors:      []int64{1, 2},
		Content:      strings.Repeat("word ", 400),
	}})
	if len(records) < 2 {
		t.Fatalf("long doc should chunk: got=%d records", len(records))
	}

	total := records[0].Payload["chunk_total"].(int)
	if total != len(records) {
		t.Fatalf("chunk_total: want=%d got=%d", len(records), total)
	}
	seen := make(map[string]struct{})
	for i, rec := range records {
		if rec.Payload["file_id"] != "f1" {
			t.Fatalf("chunk %d lost file_id: %v", i, rec.Payload["file_id"])
		}
		if rec.Payload["chunk_index"] != i {
			t.Fatalf("chunk index: want=%d got=%v", i, rec.Payload["chunk_index"])
		}
		if rec.Payload["type"] != "docx" {
			t.Fatalf("doc type: want=docx got=%v", rec.Payload["type"])
		}
		if _, dup := seen[rec.ID]; dup {
			t.Fatalf("duplicate record id %s", rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}
}

func TestNormalizeDropsEmptyEntries(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)

	records := n.Normalize([]domain.ActivityEntry{domain.ChatPostEntry{
		MessageID: "m1",
		Body:      "<p>   </p>",
		Date:      when,
	}})
	if len(records) != 0 {
		t.Fatalf("empty post should be dropped, got %d records", len(records))
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := newTestNormalizer(t)
	when := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	entry := domain.IssueEntry{
		Repo: "acme/svc", Number: 4, Title: "bug", CreatedAt: when,
		Author: domain.Author{ID: 3, Raw: "carol"},
	}

	first := n.Normalize([]domain.ActivityEntry{entry})
	second := n.Normalize([]domain.ActivityEntry{entry})
	if first[0].ID != second[0].ID {
		t.Fatalf("ids differ across runs: %s vs %s", first[0].ID, second[0].ID)
	}
}
