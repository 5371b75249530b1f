// Package gateway implements the target system's REST surface. Only
// application creation goes over REST; everything after intake uses the
// stored-procedure repository.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
)

type CampusGateway struct {
	url              string
	username         string
	password         string
	appFormSettingID int
	client           *http.Client
}

func NewCampusGateway(cfg config.Campus) *CampusGateway {
	return &CampusGateway{
		url:              strings.TrimRight(cfg.APIURL, "/"),
		username:         cfg.APIUsername,
		password:         cfg.APIPassword,
		appFormSettingID: cfg.AppFormSettingID,
		client:           &http.Client{Timeout: 60 * time.Second},
	}
}

// The creation endpoint answers a bare null-reference diagnostic when the
// payload has no phone numbers at all. Recognize it and say what actually
// went wrong.
const (
	nullRefPattern    = "Object reference not set to an instance of an object"
	phoneFramePattern = "ApplicationsController.cs:line 183"
	noPhonesMessage   = "the application has no phone numbers; the target system requires at least one"
)

// CreateApplication submits one creation payload and returns the person
// identifier the target system assigned. Transport failures and 5xx answers
// are retried exactly once; rejections are not.
func (g *CampusGateway) CreateApplication(ctx context.Context, payload map[string]any) (string, error) {
	payload["AppFormSettingId"] = g.appFormSettingID
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode creation payload")
	}

	status, text, err := g.post(ctx, body)
	if err != nil || status >= 500 {
		status, text, err = g.post(ctx, body)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to reach creation endpoint")
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return parsePeopleCode(text)
	case status == http.StatusAccepted || status == http.StatusBadRequest:
		// 202 is how this API reports validation failure, not success
		if strings.Contains(text, nullRefPattern) && strings.Contains(text, phoneFramePattern) {
			text = noPhonesMessage
		}
		return "", domain.RejectionError{StatusCode: status, Body: text}
	default:
		return "", domain.RejectionError{StatusCode: status, Body: text}
	}
}

func (g *CampusGateway) post(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/api/applications", bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.username, g.password)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(text), nil
}

// parsePeopleCode extracts the assigned identifier from a successful creation
// response. The endpoint returns prose, not JSON; the identifier sits at a
// fixed offset from the end, nine digits after a "New People Id" marker.
// Slicing instead of integer-parsing keeps the leading zeros.
func parsePeopleCode(body string) (string, error) {
	if len(body) < 25 {
		return "", domain.CreationParseError{Body: body}
	}
	if body[len(body)-25:len(body)-12] != "New People Id" {
		return "", domain.CreationParseError{Body: body}
	}
	digits := body[len(body)-11 : len(body)-2]
	if _, err := strconv.Atoi(digits); err != nil {
		return "", domain.CreationParseError{Body: body}
	}
	return "P" + digits, nil
}
