package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/teampulse/teampulse-backend/internal/pkg/httpx"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// PerPage is the page size every list endpoint is asked for.
const PerPage = 100

type Repo struct {
	Owner string `json:"-"`
	Name  string `json:"name"`
}

func (r Repo) FullName() string { return r.Owner + "/" + r.Name }

type Branch struct {
	Name string `json:"name"`
}

type CommitItem struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	// Author is the linked GitHub account, absent for unmapped commit emails.
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

type PullItem struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
	User      *struct {
		Login string `json:"login"`
	} `json:"user"`
}

type IssueItem struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
	User      *struct {
		Login string `json:"login"`
	} `json:"user"`
	// Present when the "issue" is actually a pull request.
	PullRequest *struct{} `json:"pull_request"`
}

type Readme struct {
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	HTMLURL     string `json:"html_url"`
	DownloadURL string `json:"download_url"`
}

// Page carries one page of decoded items plus the pagination hint discovered
// from the response's Link header.
type Page[T any] struct {
	Items    []T
	LastPage int
}

type ghHTTPError struct {
	StatusCode int
	Body       string
}

func (e *ghHTTPError) Error() string {
	return fmt.Sprintf("github http %d: %s", e.StatusCode, e.Body)
}

func (e *ghHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// Client wraps the GitHub REST API surface the connector needs. All list
// calls page with per_page=100; last-page discovery comes from the Link
// header; every request runs under a per-request timeout with bounded retry.
type Client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimSpace(os.Getenv("GITHUB_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	timeoutSec := utils.GetEnvAsInt("GITHUB_TIMEOUT_SECONDS", 30, log)
	maxRetries := utils.GetEnvAsInt("GITHUB_MAX_RETRIES", 3, log)

	return &Client{
		log:        log.With("service", "GitHubClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

// ListInstallationRepos returns the repositories visible to the installation
// token.
func (c *Client) ListInstallationRepos(ctx context.Context, token string) ([]Repo, error) {
	var out struct {
		Repositories []struct {
			Name  string `json:"name"`
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repositories"`
	}
	if _, err := c.getJSON(ctx, token, "/installation/repositories", nil, &out); err != nil {
		return nil, err
	}
	repos := make([]Repo, 0, len(out.Repositories))
	for _, r := range out.Repositories {
		repos = append(repos, Repo{Owner: r.Owner.Login, Name: r.Name})
	}
	return repos, nil
}

func (c *Client) ListBranches(ctx context.Context, token, owner, repo string) ([]Branch, error) {
	var out []Branch
	path := fmt.Sprintf("/repos/%s/%s/branches", owner, repo)
	if _, err := c.getJSON(ctx, token, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCommits fetches one page of commits on a branch.
func (c *Client) ListCommits(ctx context.Context, token, owner, repo, branch string, page int) (Page[CommitItem], error) {
	query := url.Values{}
	query.Set("sha", branch)
	query.Set("per_page", fmt.Sprint(PerPage))
	query.Set("page", fmt.Sprint(page))

	var items []CommitItem
	path := fmt.Sprintf("/repos/%s/%s/commits", owner, repo)
	header, err := c.getJSON(ctx, token, path, query, &items)
	if err != nil {
		return Page[CommitItem]{}, err
	}
	return Page[CommitItem]{Items: items, LastPage: ParseLastPage(header.Get("Link"))}, nil
}

func (c *Client) ListPulls(ctx context.Context, token, owner, repo string, page int) (Page[PullItem], error) {
	query := url.Values{}
	query.Set("state", "all")
	query.Set("per_page", fmt.Sprint(PerPage))
	query.Set("page", fmt.Sprint(page))

	var items []PullItem
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	header, err := c.getJSON(ctx, token, path, query, &items)
	if err != nil {
		return Page[PullItem]{}, err
	}
	return Page[PullItem]{Items: items, LastPage: ParseLastPage(header.Get("Link"))}, nil
}

func (c *Client) ListIssues(ctx context.Context, token, owner, repo string, page int) (Page[IssueItem], error) {
	query := url.Values{}
	query.Set("state", "all")
	query.Set("per_page", fmt.Sprint(PerPage))
	query.Set("page", fmt.Sprint(page))

	var items []IssueItem
	path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	header, err := c.getJSON(ctx, token, path, query, &items)
	if err != nil {
		return Page[IssueItem]{}, err
	}
	return Page[IssueItem]{Items: items, LastPage: ParseLastPage(header.Get("Link"))}, nil
}

// UserEmail looks up a user's public email. Users without a public email
// yield "".
func (c *Client) UserEmail(ctx context.Context, token, login string) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	if _, err := c.getJSON(ctx, token, "/users/"+login, nil, &out); err != nil {
		return "", err
	}
	return out.Email, nil
}

// FetchReadme returns the repository README, or nil when the repo has none.
func (c *Client) FetchReadme(ctx context.Context, token, owner, repo string) (*Readme, error) {
	var out Readme
	path := fmt.Sprintf("/repos/%s/%s/readme", owner, repo)
	if _, err := c.getJSON(ctx, token, path, nil, &out); err != nil {
		var httpErr *ghHTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, query url.Values, out any) (http.Header, error) {
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		header, raw, err := c.getOnce(ctx, token, path, query)
		if err == nil {
			if out == nil {
				return header, nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return nil, fmt.Errorf("github decode %s: %w", path, uErr)
			}
			return header, nil
		}
		lastErr = err

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("github request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, token, path string, query url.Values) (http.Header, []byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp.Header, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		if len(body) > 512 {
			body = body[:512]
		}
		return resp.Header, nil, &ghHTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return resp.Header, raw, nil
}
