// Package client talks to the CRM's web services: the query endpoints that
// export submitted applications and scheduled actions, and the upload
// endpoints that take reconciliation results back.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
)

// Slate is the CRM web-service client. One instance with one underlying
// connection pool serves a whole run; the batched action fetches in
// particular depend on connection reuse.
type Slate struct {
	cfg    config.Slate
	client *http.Client
}

func NewSlate(cfg config.Slate) *Slate {
	return &Slate{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// rowEnvelope is the CRM's uniform wire shape: every query result and every
// upload body is a list of loosely-typed rows under one key.
type rowEnvelope struct {
	Row []map[string]any `json:"row"`
}

func (s *Slate) QueryApplications(ctx context.Context, pid string) ([]map[string]any, error) {
	params := url.Values{}
	if pid != "" {
		params.Set("pid", pid)
	}
	rows, err := s.getRows(ctx, s.cfg.QueryApps, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query applications")
	}
	return rows, nil
}

func (s *Slate) GetScheduledActions(ctx context.Context, aids []string) ([]domain.ScheduledAction, error) {
	params := url.Values{}
	params.Set("aids", strings.Join(aids, ","))
	rows, err := s.getRows(ctx, s.cfg.ScheduledActions, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query scheduled actions")
	}

	actions := make([]domain.ScheduledAction, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, domain.ScheduledAction{
			AID:           stringField(row, "aid"),
			ActionID:      stringField(row, "action_id"),
			Code:          stringField(row, "code"),
			ScheduledDate: admitsync.FromAny(row["scheduled_date"]),
			CompletedDate: admitsync.FromAny(row["completed_date"]),
			Completed:     admitsync.FromAny(row["completed"]),
		})
	}
	return actions, nil
}

func (s *Slate) PostRows(ctx context.Context, endpoint config.Endpoint, rows []map[string]any) error {
	body, err := json.Marshal(rowEnvelope{Row: rows})
	if err != nil {
		return errors.Wrap(err, "failed to encode upload rows")
	}
	return s.post(ctx, endpoint, "application/json", body)
}

func (s *Slate) PostChecklist(ctx context.Context, endpoint config.Endpoint, body string) error {
	return s.post(ctx, endpoint, "text/tab-separated-values", []byte(body))
}

func (s *Slate) getRows(ctx context.Context, endpoint config.Endpoint, params url.Values) ([]map[string]any, error) {
	target := endpoint.URL
	if encoded := params.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(endpoint.Username, endpoint.Password)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("query service answered %d: %s", resp.StatusCode, string(text))
	}

	var envelope rowEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, errors.Wrap(err, "failed to decode query response")
	}
	return envelope.Row, nil
}

func (s *Slate) post(ctx context.Context, endpoint config.Endpoint, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth(endpoint.Username, endpoint.Password)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		return errors.Errorf("upload service answered %d: %s", resp.StatusCode, string(text))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func stringField(row map[string]any, key string) string {
	if s, ok := row[key].(string); ok {
		return s
	}
	return ""
}
