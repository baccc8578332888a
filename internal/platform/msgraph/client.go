package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teampulse/teampulse-backend/internal/pkg/httpx"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// PageSize is the $top value requested from list endpoints.
const PageSize = 50

type Team struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type Channel struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type IdentitySet struct {
	User *struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	Application *struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"application"`
}

type MessageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type Attachment struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	Name        string `json:"name"`
}

// ChannelMessage is a Teams channel post or one of its replies.
type ChannelMessage struct {
	ID              string       `json:"id"`
	CreatedDateTime string       `json:"createdDateTime"`
	Subject         string       `json:"subject"`
	Summary         string       `json:"summary"`
	From            *IdentitySet `json:"from"`
	Body            MessageBody  `json:"body"`
	Attachments     []Attachment `json:"attachments"`
}

type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// MailMessage is an Outlook message from a user's inbox or sent folder.
type MailMessage struct {
	ID               string        `json:"id"`
	ConversationID   string        `json:"conversationId"`
	Subject          string        `json:"subject"`
	BodyPreview      string        `json:"bodyPreview"`
	Body             MessageBody   `json:"body"`
	ReceivedDateTime string        `json:"receivedDateTime"`
	SentDateTime     string        `json:"sentDateTime"`
	From             *MailAddress  `json:"from"`
	ToRecipients     []MailAddress `json:"toRecipients"`
	Attachments      []Attachment  `json:"attachments"`
}

type MailAddress struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type Site struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

type Drive struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DriveItem is a file or folder inside a document library.
type DriveItem struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Size                 int64  `json:"size"`
	WebURL               string `json:"webUrl"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	Folder               *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	LastModifiedBy *IdentitySet `json:"lastModifiedBy"`
}

// DriveItemVersion carries who produced each stored version of a file.
type DriveItemVersion struct {
	ID                   string       `json:"id"`
	LastModifiedDateTime string       `json:"lastModifiedDateTime"`
	LastModifiedBy       *IdentitySet `json:"lastModifiedBy"`
}

type graphHTTPError struct {
	statusCode int
	endpoint   string
	body       string
}

func (e *graphHTTPError) Error() string {
	return fmt.Sprintf("graph api %s: status=%d body=%s", e.endpoint, e.statusCode, e.body)
}

func (e *graphHTTPError) HTTPStatusCode() int { return e.statusCode }

// Client is a thin Microsoft Graph REST client. List endpoints page through
// @odata.nextLink until the service stops returning one.
type Client struct {
	log        *logger.Logger
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	maxRetries int
}

func NewClient(tokens TokenSource, log *logger.Logger) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token source required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	l := log.With("service", "GraphClient")
	baseURL := strings.TrimRight(utils.GetEnv("MICROSOFT_GRAPH_BASE_URL", defaultBaseURL, l), "/")
	timeout := utils.GetEnvAsInt("MICROSOFT_GRAPH_TIMEOUT_SECONDS", 30, l)
	retries := utils.GetEnvAsInt("MICROSOFT_GRAPH_MAX_RETRIES", 4, l)
	return &Client{
		log:        l,
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		maxRetries: retries,
	}, nil
}

// ListTeams returns every group provisioned as a Team.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	path := "/groups?$filter=" + url.QueryEscape("resourceProvisioningOptions/Any(x:x eq 'Team')") +
		"&$select=id,displayName&$top=" + fmt.Sprint(PageSize)
	var out []Team
	if err := c.collectAll(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListChannels(ctx context.Context, teamID string) ([]Channel, error) {
	var out []Channel
	if err := c.collectAll(ctx, fmt.Sprintf("/teams/%s/channels", teamID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListChannelMessages fetches one page of channel posts. Pass next="" for the
// first page; the returned next link is "" once the channel is exhausted.
func (c *Client) ListChannelMessages(ctx context.Context, teamID, channelID, next string) ([]ChannelMessage, string, error) {
	target := next
	if target == "" {
		target = fmt.Sprintf("/teams/%s/channels/%s/messages?$top=%d", teamID, channelID, PageSize)
	}
	var items []ChannelMessage
	nextLink, err := c.listPage(ctx, target, &items)
	if err != nil {
		return nil, "", err
	}
	return items, nextLink, nil
}

func (c *Client) ListMessageReplies(ctx context.Context, teamID, channelID, messageID string) ([]ChannelMessage, error) {
	var out []ChannelMessage
	path := fmt.Sprintf("/teams/%s/channels/%s/messages/%s/replies", teamID, channelID, messageID)
	if err := c.collectAll(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var out User
	if err := c.getJSON(ctx, fmt.Sprintf("/users/%s?$select=id,displayName,mail,userPrincipalName", url.PathEscape(userID)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMailMessages fetches one page of a user's mail folder ("inbox" or
// "sentitems"), newest first, with attachments expanded inline. Same paging
// contract as ListChannelMessages.
func (c *Client) ListMailMessages(ctx context.Context, userKey, folder, next string) ([]MailMessage, string, error) {
	target := next
	if target == "" {
		orderField := "receivedDateTime"
		if folder == "sentitems" {
			orderField = "sentDateTime"
		}
		target = fmt.Sprintf("/users/%s/mailFolders/%s/messages?$top=%d&$orderby=%s desc&$expand=attachments",
			url.PathEscape(userKey), folder, PageSize, orderField)
	}
	var items []MailMessage
	nextLink, err := c.listPage(ctx, target, &items)
	if err != nil {
		return nil, "", err
	}
	return items, nextLink, nil
}

func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var out []Site
	if err := c.collectAll(ctx, "/sites?search=*", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSiteDrive(ctx context.Context, siteID string) (*Drive, error) {
	var out Drive
	if err := c.getJSON(ctx, fmt.Sprintf("/sites/%s/drive", siteID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDriveChildren(ctx context.Context, driveID, itemID string) ([]DriveItem, error) {
	path := fmt.Sprintf("/drives/%s/root/children", driveID)
	if itemID != "" {
		path = fmt.Sprintf("/drives/%s/items/%s/children", driveID, itemID)
	}
	var out []DriveItem
	if err := c.collectAll(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDriveItemVersions(ctx context.Context, driveID, itemID string) ([]DriveItemVersion, error) {
	var out []DriveItemVersion
	if err := c.collectAll(ctx, fmt.Sprintf("/drives/%s/items/%s/versions", driveID, itemID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadItem fetches the raw file bytes for a drive item.
func (c *Client) DownloadItem(ctx context.Context, driveID, itemID string) ([]byte, error) {
	endpoint := c.resolve(fmt.Sprintf("/drives/%s/items/%s/content", driveID, itemID))
	var body []byte
	err := c.withRetry(ctx, endpoint, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("graph download %s: %w", endpoint, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &graphHTTPError{statusCode: resp.StatusCode, endpoint: endpoint, body: readErrorBody(resp.Body)}
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// collectAll walks nextLink pages and appends every value into out, which
// must be a pointer to a slice.
func (c *Client) collectAll(ctx context.Context, path string, out any) error {
	target := path
	var raw []json.RawMessage
	for target != "" {
		var page []json.RawMessage
		next, err := c.listPage(ctx, target, &page)
		if err != nil {
			return err
		}
		raw = append(raw, page...)
		target = next
	}
	merged, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, out)
}

// listPage fetches a single list page into items and returns @odata.nextLink.
func (c *Client) listPage(ctx context.Context, pathOrURL string, items any) (string, error) {
	var envelope struct {
		Value    json.RawMessage `json:"value"`
		NextLink string          `json:"@odata.nextLink"`
	}
	if err := c.getJSON(ctx, pathOrURL, &envelope); err != nil {
		return "", err
	}
	if len(envelope.Value) > 0 {
		if err := json.Unmarshal(envelope.Value, items); err != nil {
			return "", fmt.Errorf("graph decode %s: %w", pathOrURL, err)
		}
	}
	return envelope.NextLink, nil
}

func (c *Client) getJSON(ctx context.Context, pathOrURL string, out any) error {
	endpoint := c.resolve(pathOrURL)
	return c.withRetry(ctx, endpoint, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("graph api %s: %w", endpoint, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &graphHTTPError{statusCode: resp.StatusCode, endpoint: endpoint, body: readErrorBody(resp.Body)}
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func (c *Client) withRetry(ctx context.Context, endpoint string, attempt func(token string) error) error {
	backoff := 500 * time.Millisecond
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		lastErr = attempt(token)
		if lastErr == nil {
			return nil
		}
		if !httpx.IsRetryableError(lastErr) || i == c.maxRetries {
			return lastErr
		}
		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("graph request retrying",
			"endpoint", endpoint,
			"attempt", i+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", lastErr.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return lastErr
}

// resolve leaves absolute nextLink URLs alone and prefixes relative paths.
func (c *Client) resolve(pathOrURL string) string {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL
	}
	return c.baseURL + pathOrURL
}

func readErrorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(raw))
}
