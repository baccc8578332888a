package msgraph

import (
	"context"
	"strings"
	"time"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/identity"
	graphapi "github.com/teampulse/teampulse-backend/internal/platform/msgraph"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

const (
	FolderInbox = "inbox"
	FolderSent  = "sentitems"
)

// CollectMail gathers inbox and sent messages for every known user. A mailbox
// that fails to page is logged and skipped; the remaining mailboxes still get
// collected.
func (c *Connector) CollectMail(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	var all []domain.ActivityEntry
	for _, user := range snap.Users() {
		if user.Email == "" {
			continue
		}
		for _, folder := range []string{FolderInbox, FolderSent} {
			entries, err := c.collectMailbox(ctx, snap, window, user.Email, folder)
			if err != nil {
				c.log.Error("mailbox collection failed, skipping",
					"mailbox", user.Email, "folder", folder, "error", err)
				continue
			}
			all = append(all, entries...)
		}
	}
	return all, nil
}

// collectMailbox pages newest-first through one folder, stopping once a
// whole page predates the window.
func (c *Connector) collectMailbox(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow, mailbox, folder string) ([]domain.ActivityEntry, error) {
	loc := window.Start.Location()
	var out []domain.ActivityEntry

	next := ""
	for page := 0; page < c.maxPages; page++ {
		messages, nextLink, err := c.api.ListMailMessages(ctx, mailbox, folder, next)
		if err != nil {
			return nil, err
		}
		if len(messages) == 0 {
			break
		}

		pastWindow := true
		for _, msg := range messages {
			raw := msg.ReceivedDateTime
			if folder == FolderSent {
				raw = msg.SentDateTime
			}
			ts, err := utils.ParseProviderTime(raw, loc)
			if err != nil {
				continue
			}
			if !ts.Before(window.Start) {
				pastWindow = false
			}
			if !window.Contains(ts) {
				continue
			}
			out = append(out, c.mailEntry(snap, mailbox, folder, ts, &msg))
		}

		if pastWindow || nextLink == "" {
			break
		}
		next = nextLink
	}
	return out, nil
}

// mailEntry attributes the message to the mailbox owner: sent mail counts as
// the owner sending, inbox mail as the owner receiving.
func (c *Connector) mailEntry(snap *identity.Snapshot, mailbox, folder string, ts time.Time, msg *graphapi.MailMessage) domain.EmailMessageEntry {
	owner := strings.ToLower(mailbox)
	entryFolder := "inbox"
	if folder == FolderSent {
		entryFolder = "sent"
	}

	sender := ""
	if msg.From != nil {
		sender = strings.ToLower(msg.From.EmailAddress.Address)
	}
	receivers := make([]string, 0, len(msg.ToRecipients))
	for _, to := range msg.ToRecipients {
		if addr := strings.ToLower(to.EmailAddress.Address); addr != "" {
			receivers = append(receivers, addr)
		}
	}

	var attachments []string
	for _, att := range msg.Attachments {
		if att.Name != "" {
			attachments = append(attachments, att.Name)
		}
	}

	id := snap.Resolve(identity.KeyspaceOrgEmail, owner)
	return domain.EmailMessageEntry{
		MessageID:      msg.ID,
		Mailbox:        owner,
		Folder:         entryFolder,
		Sender:         sender,
		Receivers:      receivers,
		Subject:        msg.Subject,
		Body:           msg.Body.Content,
		ConversationID: msg.ConversationID,
		Attachments:    attachments,
		Date:           ts,
		Author:         domain.Author{ID: id, Raw: owner},
	}
}
