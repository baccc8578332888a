package github

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/identity"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	ghapi "github.com/teampulse/teampulse-backend/internal/platform/github"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// api is the slice of the GitHub platform client the connector consumes.
type api interface {
	ListInstallationRepos(ctx context.Context, token string) ([]ghapi.Repo, error)
	ListBranches(ctx context.Context, token, owner, repo string) ([]ghapi.Branch, error)
	ListCommits(ctx context.Context, token, owner, repo, branch string, page int) (ghapi.Page[ghapi.CommitItem], error)
	ListPulls(ctx context.Context, token, owner, repo string, page int) (ghapi.Page[ghapi.PullItem], error)
	ListIssues(ctx context.Context, token, owner, repo string, page int) (ghapi.Page[ghapi.IssueItem], error)
	UserEmail(ctx context.Context, token, login string) (string, error)
	FetchReadme(ctx context.Context, token, owner, repo string) (*ghapi.Readme, error)
}

// fingerprintStore looks up the stored payload of a record so README change
// detection can compare content hashes without refetching old content.
type fingerprintStore interface {
	RetrievePayload(ctx context.Context, collection, id string) (map[string]any, error)
}

// Connector collects commit, pull request, issue, and README activity for
// every installation the identity snapshot knows about.
type Connector struct {
	log          *logger.Logger
	api          api
	tokens       ghapi.TokenSource
	fingerprints fingerprintStore
	concurrency  int
}

func NewConnector(client api, tokens ghapi.TokenSource, fingerprints fingerprintStore, log *logger.Logger) (*Connector, error) {
	if client == nil || tokens == nil || log == nil {
		return nil, fmt.Errorf("github connector: client, tokens and logger required")
	}
	l := log.With("connector", "github")
	return &Connector{
		log:          l,
		api:          client,
		tokens:       tokens,
		fingerprints: fingerprints,
		concurrency:  utils.GetEnvAsInt("GITHUB_REPO_CONCURRENCY", 4, l),
	}, nil
}

// Collect gathers every entry that occurred inside window across all teams'
// installations. A failing repository is logged and skipped so one broken
// repo cannot starve the rest of the run; the error return is reserved for
// failures that invalidate the whole collection (token exchange, repo
// listing).
func (c *Connector) Collect(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	var all []domain.ActivityEntry
	for _, team := range snap.Teams() {
		if team.InstallationID == "" {
			continue
		}
		entries, err := c.collectInstallation(ctx, team.InstallationID, snap, window)
		if err != nil {
			return nil, fmt.Errorf("github installation %s: %w", team.InstallationID, err)
		}
		all = append(all, entries...)
	}
	return all, nil
}

func (c *Connector) collectInstallation(ctx context.Context, installationID string, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	token, err := c.tokens.Token(ctx, installationID)
	if err != nil {
		return nil, err
	}
	repos, err := c.api.ListInstallationRepos(ctx, token)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		all []domain.ActivityEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			entries, err := c.collectRepo(gctx, token, repo, snap, window)
			if err != nil {
				c.log.Error("repo collection failed, skipping",
					"repo", repo.FullName(), "error", err)
				return nil
			}
			mu.Lock()
			all = append(all, entries...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func (c *Connector) collectRepo(ctx context.Context, token string, repo ghapi.Repo, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	var entries []domain.ActivityEntry

	commits, err := c.collectCommits(ctx, token, repo, snap, window)
	if err != nil {
		return nil, fmt.Errorf("commits: %w", err)
	}
	entries = append(entries, commits...)

	pulls, err := c.collectPulls(ctx, token, repo, snap, window)
	if err != nil {
		return nil, fmt.Errorf("pulls: %w", err)
	}
	entries = append(entries, pulls...)

	issues, err := c.collectIssues(ctx, token, repo, snap, window)
	if err != nil {
		return nil, fmt.Errorf("issues: %w", err)
	}
	entries = append(entries, issues...)

	readme, err := c.collectReadme(ctx, token, repo, window)
	if err != nil {
		return nil, fmt.Errorf("readme: %w", err)
	}
	if readme != nil {
		entries = append(entries, *readme)
	}
	return entries, nil
}

// collectCommits walks every branch. The seen set spans branches so a commit
// reachable from several heads is emitted exactly once. Commit listings come
// newest first, so a page whose every item predates the window ends that
// branch's walk.
func (c *Connector) collectCommits(ctx context.Context, token string, repo ghapi.Repo, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	branches, err := c.api.ListBranches(ctx, token, repo.Owner, repo.Name)
	if err != nil {
		return nil, err
	}

	loc := window.Start.Location()
	seen := make(map[string]struct{})
	var out []domain.ActivityEntry

	for _, branch := range branches {
		lastPage := 1
		for page := 1; page <= lastPage; page++ {
			pg, err := c.api.ListCommits(ctx, token, repo.Owner, repo.Name, branch.Name, page)
			if err != nil {
				return nil, err
			}
			if pg.LastPage > lastPage {
				lastPage = pg.LastPage
			}
			if len(pg.Items) == 0 {
				break
			}

			pastWindow := true
			for _, item := range pg.Items {
				ts, err := utils.ParseProviderTime(item.Commit.Author.Date, loc)
				if err != nil {
					c.log.Warn("unparseable commit date, skipping",
						"repo", repo.FullName(), "sha", item.SHA, "raw", item.Commit.Author.Date)
					continue
				}
				if !ts.Before(window.Start) {
					pastWindow = false
				}
				if !window.Contains(ts) {
					continue
				}
				if _, dup := seen[item.SHA]; dup {
					continue
				}
				seen[item.SHA] = struct{}{}

				login := ""
				if item.Author != nil {
					login = item.Author.Login
				}
				out = append(out, domain.CommitEntry{
					Repo:    repo.FullName(),
					SHA:     item.SHA,
					Message: item.Commit.Message,
					Date:    ts,
					Author: snap.ResolveChain(
						identity.Lookup{Keyspace: identity.KeyspaceGitEmail, Key: strings.ToLower(item.Commit.Author.Email)},
						identity.Lookup{Keyspace: identity.KeyspaceGitLogin, Key: login},
					),
				})
			}
			if pastWindow {
				break
			}
		}
	}
	return out, nil
}

func (c *Connector) collectPulls(ctx context.Context, token string, repo ghapi.Repo, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	loc := window.Start.Location()
	var out []domain.ActivityEntry

	lastPage := 1
	for page := 1; page <= lastPage; page++ {
		pg, err := c.api.ListPulls(ctx, token, repo.Owner, repo.Name, page)
		if err != nil {
			return nil, err
		}
		if pg.LastPage > lastPage {
			lastPage = pg.LastPage
		}
		if len(pg.Items) == 0 {
			break
		}

		pastWindow := true
		for _, item := range pg.Items {
			ts, err := utils.ParseProviderTime(item.CreatedAt, loc)
			if err != nil {
				continue
			}
			if !ts.Before(window.Start) {
				pastWindow = false
			}
			if !window.Contains(ts) {
				continue
			}
			login := ""
			if item.User != nil {
				login = item.User.Login
			}
			out = append(out, domain.PullRequestEntry{
				Repo:      repo.FullName(),
				Number:    item.Number,
				Title:     item.Title,
				Body:      item.Body,
				State:     item.State,
				CreatedAt: ts,
				Author:    c.resolveLogin(ctx, token, snap, login),
			})
		}
		if pastWindow {
			break
		}
	}
	return out, nil
}

func (c *Connector) collectIssues(ctx context.Context, token string, repo ghapi.Repo, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
	loc := window.Start.Location()
	var out []domain.ActivityEntry

	lastPage := 1
	for page := 1; page <= lastPage; page++ {
		pg, err := c.api.ListIssues(ctx, token, repo.Owner, repo.Name, page)
		if err != nil {
			return nil, err
		}
		if pg.LastPage > lastPage {
			lastPage = pg.LastPage
		}
		if len(pg.Items) == 0 {
			break
		}

		pastWindow := true
		for _, item := range pg.Items {
			// the issues endpoint interleaves pull requests
			if item.PullRequest != nil {
				continue
			}
			ts, err := utils.ParseProviderTime(item.CreatedAt, loc)
			if err != nil {
				continue
			}
			if !ts.Before(window.Start) {
				pastWindow = false
			}
			if !window.Contains(ts) {
				continue
			}
			login := ""
			if item.User != nil {
				login = item.User.Login
			}
			out = append(out, domain.IssueEntry{
				Repo:      repo.FullName(),
				Number:    item.Number,
				Title:     item.Title,
				State:     item.State,
				CreatedAt: ts,
				Author:    c.resolveLogin(ctx, token, snap, login),
			})
		}
		if pastWindow {
			break
		}
	}
	return out, nil
}

// collectReadme fingerprints the current README and emits an entry only when
// the hash differs from the one stored with the repo's record. A repo without
// a README yields nothing.
func (c *Connector) collectReadme(ctx context.Context, token string, repo ghapi.Repo, window domain.DayWindow) (*domain.ReadmeEntry, error) {
	readme, err := c.api.FetchReadme(ctx, token, repo.Owner, repo.Name)
	if err != nil {
		return nil, err
	}
	if readme == nil {
		return nil, nil
	}

	content := readme.Content
	if strings.EqualFold(readme.Encoding, "base64") {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("decode readme: %w", err)
		}
		content = string(decoded)
	}

	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])

	if c.fingerprints != nil {
		id := domain.RecordID(domain.SourceReadme, repo.FullName(), 0)
		payload, err := c.fingerprints.RetrievePayload(ctx, domain.CollectionFor(domain.SourceReadme), id)
		if err != nil {
			c.log.Warn("readme fingerprint lookup failed, treating as changed",
				"repo", repo.FullName(), "error", err)
		} else if payload != nil {
			if stored, _ := payload["content_hash"].(string); stored == hash {
				return nil, nil
			}
		}
	}

	return &domain.ReadmeEntry{
		Repo:        repo.FullName(),
		Content:     content,
		ContentHash: hash,
		HTMLURL:     readme.HTMLURL,
		DownloadURL: readme.DownloadURL,
		FetchedAt:   window.Start,
	}, nil
}

// resolveLogin maps a GitHub login to an internal user, falling back to the
// account's public email when the login itself is unmapped.
func (c *Connector) resolveLogin(ctx context.Context, token string, snap *identity.Snapshot, login string) domain.Author {
	if login == "" {
		return domain.Author{}
	}
	if id := snap.Resolve(identity.KeyspaceGitLogin, login); id != 0 {
		return domain.Author{ID: id, Raw: login}
	}
	email, err := c.api.UserEmail(ctx, token, login)
	if err != nil {
		c.log.Warn("user email lookup failed", "login", login, "error", err)
		return domain.Author{ID: 0, Raw: login}
	}
	if email != "" {
		if id := snap.Resolve(identity.KeyspaceGitEmail, strings.ToLower(email)); id != 0 {
			return domain.Author{ID: id, Raw: login}
		}
	}
	return domain.Author{ID: 0, Raw: login}
}
