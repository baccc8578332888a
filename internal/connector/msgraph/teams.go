package msgraph

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/identity"
	graphapi "github.com/teampulse/teampulse-backend/internal/platform/msgraph"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// collectChannel pages newest-first through a channel's posts, stopping once
// a whole page predates the window. Replies are fetched per in-window post
// and filtered to the same window.
func (c *Connector) collectChannel(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow, teamID, channelID string) ([]domain.ActivityEntry, error) {
	loc := window.Start.Location()
	var out []domain.ActivityEntry

	next := ""
	for page := 0; page < c.maxPages; page++ {
		messages, nextLink, err := c.api.ListChannelMessages(ctx, teamID, channelID, next)
		if err != nil {
			return nil, err
		}
		if len(messages) == 0 {
			break
		}

		pastWindow := true
		for _, msg := range messages {
			ts, err := utils.ParseProviderTime(msg.CreatedDateTime, loc)
			if err != nil {
				continue
			}
			if !ts.Before(window.Start) {
				pastWindow = false
			}
			if !window.Contains(ts) {
				continue
			}

			post := domain.ChatPostEntry{
				MessageID: msg.ID,
				Subject:   msg.Subject,
				Summary:   msg.Summary,
				Body:      msg.Body.Content,
				CardText:  cardText(msg.Attachments),
				Date:      ts,
				Author:    c.resolveMessageAuthor(ctx, snap, &msg),
			}
			for _, att := range msg.Attachments {
				if att.Name != "" {
					post.Attachments = append(post.Attachments, att.Name)
				}
			}

			replies, err := c.api.ListMessageReplies(ctx, teamID, channelID, msg.ID)
			if err != nil {
				c.log.Warn("reply listing failed",
					"channel_id", channelID, "message_id", msg.ID, "error", err)
			} else {
				for _, reply := range replies {
					rts, err := utils.ParseProviderTime(reply.CreatedDateTime, loc)
					if err != nil || !window.Contains(rts) {
						continue
					}
					replyEntry := domain.ChatReplyEntry{
						MessageID:  reply.ID,
						ParentID:   msg.ID,
						ParentBody: msg.Body.Content,
						Body:       reply.Body.Content,
						Date:       rts,
						Author:     c.resolveMessageAuthor(ctx, snap, &reply),
					}
					for _, att := range reply.Attachments {
						if att.Name != "" {
							replyEntry.Attachments = append(replyEntry.Attachments, att.Name)
						}
					}
					post.Replies = append(post.Replies, replyEntry)
				}
			}
			out = append(out, post)
		}

		if pastWindow || nextLink == "" {
			break
		}
		next = nextLink
	}
	return out, nil
}

// resolveMessageAuthor maps a message's sender to an internal user. Human
// senders resolve through the directory's email; application senders (Jira
// Cloud notifications and the like) fall back to the person named at the
// start of the card text, matched against organization display names.
func (c *Connector) resolveMessageAuthor(ctx context.Context, snap *identity.Snapshot, msg *graphapi.ChannelMessage) domain.Author {
	if msg.From != nil && msg.From.User != nil {
		email, err := c.directory.UserEmail(ctx, msg.From.User.ID)
		if err != nil {
			c.log.Warn("sender email lookup failed",
				"user_id", msg.From.User.ID, "error", err)
		}
		raw := email
		if raw == "" {
			raw = msg.From.User.DisplayName
		}
		if email != "" {
			if id := snap.Resolve(identity.KeyspaceOrgEmail, email); id != 0 {
				return domain.Author{ID: id, Raw: raw}
			}
		}
		return domain.Author{ID: 0, Raw: raw}
	}

	appName := ""
	if msg.From != nil && msg.From.Application != nil {
		appName = msg.From.Application.DisplayName
	}
	if author, ok := c.cardAuthor(snap, cardText(msg.Attachments)); ok {
		return author
	}
	return domain.Author{ID: 0, Raw: appName}
}

// cardAuthor tries leading name tokens of each card line against the
// organization name keyspace, allowing for one- and two-token names.
func (c *Connector) cardAuthor(snap *identity.Snapshot, lines []string) (domain.Author, bool) {
	for _, line := range lines {
		fields := strings.Fields(line)
		for take := 1; take <= 2 && take <= len(fields); take++ {
			candidate := strings.Join(fields[:take], " ")
			if id := snap.Resolve(identity.KeyspaceOrgName, candidate); id != 0 {
				return domain.Author{ID: id, Raw: candidate}, true
			}
		}
	}
	return domain.Author{}, false
}

// cardText extracts every "text" value nested anywhere in the attachments'
// adaptive card JSON. Object keys are visited in sorted order so the result
// is stable for a given card.
func cardText(attachments []graphapi.Attachment) []string {
	var out []string
	for _, att := range attachments {
		if att.Content == "" {
			continue
		}
		var card any
		if err := json.Unmarshal([]byte(att.Content), &card); err != nil {
			continue
		}
		out = append(out, walkTextKeys(card)...)
	}
	return out
}

func walkTextKeys(node any) []string {
	var out []string
	switch v := node.(type) {
	case map[string]any:
		text, isString := v["text"].(string)
		if isString && strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "text" && isString {
				continue
			}
			out = append(out, walkTextKeys(v[k])...)
		}
	case []any:
		for _, child := range v {
			out = append(out, walkTextKeys(child)...)
		}
	}
	return out
}
