package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"extflow/internal/config"
	"extflow/internal/domain"
	"extflow/internal/journal"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100

	webhookEventType = "project.status_changed"
)

type webhookDispatcher struct {
	journal  JournalStore
	webhooks []config.WebhookConfig
	client   *http.Client
	log      *zap.Logger
	mu       sync.Mutex
	cursors  map[int]int64
}

func newWebhookDispatcher(j JournalStore, hooks []config.WebhookConfig, log *zap.Logger) *webhookDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &webhookDispatcher{
		journal:  j,
		webhooks: hooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log,
		cursors:  make(map[int]int64),
	}
}

// StartWebhooks posts successful transitions to the configured hooks until ctx
// is done. Delivery starts after the entries already in the journal.
func StartWebhooks(ctx context.Context, j JournalStore, hooks []config.WebhookConfig, log *zap.Logger) {
	if j == nil || len(hooks) == 0 {
		return
	}
	d := newWebhookDispatcher(j, hooks, log)
	go d.run(ctx)
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	entries, err := d.journal.After(ctx, defaultWebhookBatch, cursor, journal.Filter{Outcome: domain.OutcomeSucceeded})
	if err != nil {
		d.log.Warn("webhook: fetch journal failed", zap.Error(err))
		return
	}
	filter := newStatusFilter(hook.Events)
	for _, entry := range entries {
		if !filter.match(entry.ToStatus) {
			d.setCursor(idx, entry.ID)
			continue
		}
		if err := d.post(ctx, hook, entry); err != nil {
			d.log.Warn("webhook: delivery failed",
				zap.String("url", hook.URL),
				zap.Int64("entry_id", entry.ID),
				zap.Error(err),
			)
			return
		}
		d.setCursor(idx, entry.ID)
	}
}

func (d *webhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.journal.LatestID(ctx)
	if err != nil {
		d.log.Warn("webhook: init cursor failed", zap.Error(err))
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	RequestID  string `json:"request_id"`
	ProjectID  string `json:"project_id"`
	ActorID    string `json:"actor_id"`
	Role       string `json:"role,omitempty"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	TS         string `json:"ts"`
}

func (d *webhookDispatcher) post(ctx context.Context, hook config.WebhookConfig, entry domain.JournalEntry) error {
	data, err := json.Marshal(webhookEvent{
		ID:         entry.ID,
		Type:       webhookEventType,
		RequestID:  entry.RequestID,
		ProjectID:  entry.ProjectID,
		ActorID:    entry.ActorID,
		Role:       entry.Role,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		TS:         entry.TS,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != d.client.Timeout {
			client = &http.Client{Timeout: timeout}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Extflow-Event", webhookEventType)
	req.Header.Set("X-Extflow-Delivery", fmt.Sprintf("%d", entry.ID))
	req.Header.Set("X-Extflow-Project", entry.ProjectID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Extflow-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type statusFilter struct {
	all bool
	set map[string]struct{}
}

func newStatusFilter(statuses []string) statusFilter {
	set := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		if key := strings.TrimSpace(s); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return statusFilter{all: true}
	}
	return statusFilter{set: set}
}

func (f statusFilter) match(status string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[status]
	return ok
}
