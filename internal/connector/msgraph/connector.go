package msgraph

import (
	"context"
	"fmt"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/identity"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	graphapi "github.com/teampulse/teampulse-backend/internal/platform/msgraph"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// api is the slice of the Graph platform client the connectors consume.
type api interface {
	ListTeams(ctx context.Context) ([]graphapi.Team, error)
	ListChannels(ctx context.Context, teamID string) ([]graphapi.Channel, error)
	ListChannelMessages(ctx context.Context, teamID, channelID, next string) ([]graphapi.ChannelMessage, string, error)
	ListMessageReplies(ctx context.Context, teamID, channelID, messageID string) ([]graphapi.ChannelMessage, error)
	ListMailMessages(ctx context.Context, userKey, folder, next string) ([]graphapi.MailMessage, string, error)
	ListSites(ctx context.Context) ([]graphapi.Site, error)
	GetSiteDrive(ctx context.Context, siteID string) (*graphapi.Drive, error)
	ListDriveChildren(ctx context.Context, driveID, itemID string) ([]graphapi.DriveItem, error)
	ListDriveItemVersions(ctx context.Context, driveID, itemID string) ([]graphapi.DriveItemVersion, error)
	DownloadItem(ctx context.Context, driveID, itemID string) ([]byte, error)
}

// directory resolves Graph user ids to email addresses.
type directory interface {
	UserEmail(ctx context.Context, userID string) (string, error)
}

// TextExtractor turns downloaded file bytes into plain text. Extraction
// failures should come back as errors, not partial text.
type TextExtractor interface {
	Extract(name, mimeType string, data []byte) (string, error)
}

// Connector collects Teams channel messages, Outlook mail, and drive
// documents for the organization's tenant.
type Connector struct {
	log       *logger.Logger
	api       api
	directory directory
	extractor TextExtractor
	maxPages  int
}

func NewConnector(client api, dir directory, extractor TextExtractor, log *logger.Logger) (*Connector, error) {
	if client == nil || dir == nil || log == nil {
		return nil, fmt.Errorf("graph connector: client, directory and logger required")
	}
	l := log.With("connector", "msgraph")
	return &Connector{
		log:       l,
		api:       client,
		directory: dir,
		extractor: extractor,
		maxPages:  utils.GetEnvAsInt("MICROSOFT_GRAPH_MAX_PAGES", 200, l),
	}, nil
}

// CollectTeams gathers channel posts created inside window plus their
// in-window replies. Failures on a single team or channel are logged and
// skipped so the rest of the tenant still gets collected.
func (c *Connector) CollectTeams(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	teams, err := c.api.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	var all []domain.ActivityEntry
	for _, team := range teams {
		channels, err := c.api.ListChannels(ctx, team.ID)
		if err != nil {
			c.log.Error("channel listing failed, skipping team",
				"team_id", team.ID, "team", team.DisplayName, "error", err)
			continue
		}
		for _, channel := range channels {
			entries, err := c.collectChannel(ctx, snap, window, team.ID, channel.ID)
			if err != nil {
				c.log.Error("channel collection failed, skipping",
					"team_id", team.ID, "channel_id", channel.ID, "error", err)
				continue
			}
			all = append(all, entries...)
		}
	}
	return all, nil
}
