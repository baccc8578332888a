package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

// Notifier posts run and report summaries to the configured webhooks.
// Delivery is fire-and-forget: a failed webhook is logged, never propagated,
// so notification problems cannot fail a batch run.
type Notifier struct {
	log        *logger.Logger
	cfg        NotifyConfig
	httpClient *http.Client
}

func NewNotifier(cfg NotifyConfig, log *logger.Logger) *Notifier {
	return &Notifier{
		log:        log.With("service", "Notifier"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// DailySummary describes one completed run.
type DailySummary struct {
	Date     string         `json:"date"`
	Kind     string         `json:"kind"`
	Records  map[string]int `json:"records"`
	Failures []string       `json:"failures,omitempty"`
}

// NotifyDaily reports a finished run to the daily webhook.
func (n *Notifier) NotifyDaily(summary DailySummary) {
	n.post(n.cfg.DailyWebhookURL, "daily", summary)
}

// WeeklySummary carries the materialized report's headline numbers.
type WeeklySummary struct {
	Date      string `json:"date"`
	Rows      int    `json:"rows"`
	Users     int    `json:"users"`
	TeamID    string `json:"team_id,omitempty"`
	TeamName  string `json:"team_name,omitempty"`
	TotalGit  int    `json:"total_git"`
	TotalChat int    `json:"total_chat"`
	TotalMail int    `json:"total_mail"`
	TotalDocs int    `json:"total_docs"`
}

// addRow folds one report row into the summary's totals.
func (s *WeeklySummary) addRow(row *domain.DailyUserActivity) {
	s.TotalGit += row.GitCommit + row.GitPullRequest + row.GitIssue
	s.TotalChat += row.TeamsPost + row.TeamsReply
	s.TotalMail += row.EmailSend + row.EmailReceive
	s.TotalDocs += row.DocsDocx + row.DocsXlsx + row.DocsPptx + row.DocsEtc
}

// NotifyWeekly reports the fresh weekly report to the weekly webhook and, for
// every team with its own webhook, that team's member-scoped summary.
func (n *Notifier) NotifyWeekly(summary WeeklySummary, teamSummaries []WeeklySummary) {
	n.post(n.cfg.WeeklyWebhookURL, "weekly", summary)
	for _, teamSummary := range teamSummaries {
		url, ok := n.cfg.TeamWebhookURLs[teamSummary.TeamID]
		if !ok || url == "" {
			continue
		}
		n.post(url, "team_weekly", teamSummary)
	}
}

func (n *Notifier) post(url, kind string, payload any) {
	if url == "" {
		return
	}
	go func() {
		body, err := json.Marshal(payload)
		if err != nil {
			n.log.Error("notify encode failed", "kind", kind, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			n.log.Error("notify request failed", "kind", kind, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Error("notify delivery failed", "kind", kind, "error", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			n.log.Error("notify rejected", "kind", kind,
				"error", fmt.Sprintf("status=%d", resp.StatusCode))
			return
		}
		n.log.Info("notification delivered", "kind", kind)
	}()
}
