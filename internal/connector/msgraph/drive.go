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

// CollectDocs walks every site's document library and gathers files modified
// inside window. Authorship comes from the version history, so a file edited
// by three people credits all three.
func (c *Connector) CollectDocs(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	sites, err := c.api.ListSites(ctx)
	if err != nil {
		return nil, err
	}

	var all []domain.ActivityEntry
	for _, site := range sites {
		drive, err := c.api.GetSiteDrive(ctx, site.ID)
		if err != nil {
			c.log.Error("drive lookup failed, skipping site",
				"site_id", site.ID, "site", site.DisplayName, "error", err)
			continue
		}
		entries, err := c.walkFolder(ctx, snap, window, drive.ID, "")
		if err != nil {
			c.log.Error("drive walk failed, skipping site",
				"site_id", site.ID, "drive_id", drive.ID, "error", err)
			continue
		}
		all = append(all, entries...)
	}
	return all, nil
}

// walkFolder recurses the folder tree under itemID ("" for the drive root).
func (c *Connector) walkFolder(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow, driveID, itemID string) ([]domain.ActivityEntry, error) {
	children, err := c.api.ListDriveChildren(ctx, driveID, itemID)
	if err != nil {
		return nil, err
	}

	loc := window.Start.Location()
	var out []domain.ActivityEntry
	for _, child := range children {
		if child.Folder != nil {
			sub, err := c.walkFolder(ctx, snap, window, driveID, child.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		if child.File == nil {
			continue
		}

		ts, err := utils.ParseProviderTime(child.LastModifiedDateTime, loc)
		if err != nil || !window.Contains(ts) {
			continue
		}

		entry, err := c.docEntry(ctx, snap, window, driveID, child, ts)
		if err != nil {
			c.log.Warn("file collection failed, skipping",
				"drive_id", driveID, "file_id", child.ID, "name", child.Name, "error", err)
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (c *Connector) docEntry(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow, driveID string, item graphapi.DriveItem, ts time.Time) (*domain.DriveFileEntry, error) {
	versions, err := c.api.ListDriveItemVersions(ctx, driveID, item.ID)
	if err != nil {
		return nil, err
	}

	loc := window.Start.Location()
	authorSet := make(map[int64]struct{})
	var authors []int64
	addAuthor := func(set *graphapi.IdentitySet) {
		if set == nil || set.User == nil {
			return
		}
		email, err := c.directory.UserEmail(ctx, set.User.ID)
		if err != nil {
			c.log.Warn("version author lookup failed",
				"user_id", set.User.ID, "error", err)
			return
		}
		id := snap.Resolve(identity.KeyspaceOrgEmail, email)
		if _, dup := authorSet[id]; dup {
			return
		}
		authorSet[id] = struct{}{}
		authors = append(authors, id)
	}

	// only versions saved inside the window count as today's editors
	for _, version := range versions {
		vts, err := utils.ParseProviderTime(version.LastModifiedDateTime, loc)
		if err != nil || !window.Contains(vts) {
			continue
		}
		addAuthor(version.LastModifiedBy)
	}
	if len(authors) == 0 {
		addAuthor(item.LastModifiedBy)
	}
	if len(authors) == 0 {
		authors = []int64{0}
	}

	content := ""
	if c.extractor != nil {
		mimeType := ""
		if item.File != nil {
			mimeType = item.File.MimeType
		}
		data, err := c.api.DownloadItem(ctx, driveID, item.ID)
		if err != nil {
			return nil, err
		}
		text, err := c.extractor.Extract(item.Name, mimeType, data)
		if err != nil {
			c.log.Warn("text extraction failed, indexing name only",
				"file_id", item.ID, "name", item.Name, "error", err)
		} else {
			content = text
		}
	}
	if strings.TrimSpace(content) == "" {
		content = item.Name
	}

	mimeType := ""
	if item.File != nil {
		mimeType = item.File.MimeType
	}
	return &domain.DriveFileEntry{
		DriveID:      driveID,
		FileID:       item.ID,
		Filename:     item.Name,
		MimeType:     mimeType,
		Size:         item.Size,
		WebURL:       item.WebURL,
		LastModified: ts,
		Authors:      authors,
		Content:      content,
	}, nil
}
