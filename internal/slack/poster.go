package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
)

const (
	defaultPostMessageURL = "https://slack.com/api/chat.postMessage"
	// Slack truncates section text beyond this.
	maxTextLen = 3000
)

// Poster sends operator alerts to a Slack channel.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// ReportFlushFailure posts a summary of the lost batch and threads the raw
// entries under it so they can be replayed by hand.
func (p *Poster) ReportFlushFailure(ctx context.Context, ferr *chatlog.FlushError) {
	ts, err := p.PostAlert(ctx, formatFlushFailure(ferr))
	if err != nil {
		p.logger.Error("failed to post flush failure to slack", "error", err)
		return
	}

	for _, part := range entryDumps(ferr.Records) {
		if err := p.PostThread(ctx, ts, part); err != nil {
			p.logger.Error("failed to post flush failure entries to slack", "error", err, "ts", ts)
			return
		}
	}
}

// PostAlert posts a top-level message and returns its ts.
func (p *Poster) PostAlert(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "labguard chat log pipeline",
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	ts, err := p.post(ctx, body)
	if err != nil {
		return "", err
	}
	p.logger.Info("posted alert to slack", "ts", ts)
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	body, err := json.Marshal(map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = p.post(ctx, body)
	return err
}

func (p *Poster) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatFlushFailure(ferr *chatlog.FlushError) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, ":rotating_light: *Chat log flush failed*\n")
	fmt.Fprintf(&sb, "*Entries lost from buffer:* %d\n", len(ferr.Records))
	fmt.Fprintf(&sb, "*Error:* `%v`\n", ferr.Err)

	sessions := make(map[string]int)
	for _, r := range ferr.Records {
		sessions[r.SessionID]++
	}
	if len(sessions) > 0 {
		ids := make([]string, 0, len(sessions))
		for id := range sessions {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		fmt.Fprintf(&sb, "\n*Sessions affected: %d*\n", len(ids))
		for _, id := range ids {
			fmt.Fprintf(&sb, "• %s (%d)\n", id, sessions[id])
		}
	}

	sb.WriteString("\n_Raw entries follow in thread._")
	return truncate(sb.String(), maxTextLen)
}

// entryDumps renders records as JSON lines split into Slack-sized code blocks.
func entryDumps(records []chatlog.Record) []string {
	const fence = "```"
	limit := maxTextLen - 2*len(fence) - 2

	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, fence+"\n"+cur.String()+fence)
			cur.Reset()
		}
	}

	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			continue
		}
		s := truncate(string(line), limit-1)
		if cur.Len()+len(s)+1 > limit {
			flush()
		}
		cur.WriteString(s)
		cur.WriteByte('\n')
	}
	flush()
	return parts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
