// Package remote talks to the public directory: it fetches profiles and forwards
// OTP confirmations to the verifier.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"profiledir/internal/domain"
	"profiledir/internal/handshake"
	"profiledir/internal/storage"
)

// ErrUnexpectedStatus is wrapped when the directory answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("remote: unexpected http status")

// Client is an HTTP client of the directory API.
type Client struct {
	base string
	http *http.Client
	log  logrus.FieldLogger
}

// NewClient creates a client for the directory at baseURL. A nil httpClient uses a
// client without a timeout beyond the transport defaults.
func NewClient(baseURL string, httpClient *http.Client, logger logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: httpClient,
		log:  logger.WithField("component", "remote"),
	}
}

type profileResponse struct {
	ID              string         `json:"id"`
	Address         string         `json:"address"`
	Name            string         `json:"name"`
	DisplayName     string         `json:"display_name"`
	Bio             string         `json:"bio"`
	ProfileImageURL string         `json:"profile_image_url"`
	AddressVerified bool           `json:"address_verified"`
	Links           []linkResponse `json:"links"`
}

type linkResponse struct {
	ID                    int64      `json:"id"`
	URL                   string     `json:"url"`
	IsVerified            bool       `json:"is_verified"`
	VerificationExpiresAt *time.Time `json:"verification_expires_at"`
}

// FetchProfile loads a profile and its links. A 404 maps to storage.ErrNotFound.
func (c *Client) FetchProfile(ctx context.Context, id string) (domain.Profile, error) {
	endpoint := c.base + "/api/profiles/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var body profileResponse
	if err := c.do(req, &body); err != nil {
		return domain.Profile{}, err
	}

	p := domain.Profile{
		ID:              body.ID,
		Address:         body.Address,
		Name:            body.Name,
		DisplayName:     body.DisplayName,
		Bio:             body.Bio,
		ProfileImageURL: body.ProfileImageURL,
		AddressVerified: body.AddressVerified,
		FetchedAt:       time.Now(),
	}
	if p.ID == "" {
		p.ID = id
	}
	for _, l := range body.Links {
		p.Links = append(p.Links, domain.Link{
			ID:                    l.ID,
			URL:                   l.URL,
			IsVerified:            l.IsVerified,
			VerificationExpiresAt: l.VerificationExpiresAt,
		})
	}
	return p, nil
}

type confirmRequest struct {
	ID  string `json:"id"`
	OTP string `json:"otp"`
}

type confirmResponse struct {
	Status string `json:"status"`
}

// ConfirmOTP implements handshake.Verifier. The status is passed through as is;
// the handshake decides what an unknown value means.
func (c *Client) ConfirmOTP(ctx context.Context, entityID, otp string) (handshake.Status, error) {
	buf, err := json.Marshal(confirmRequest{ID: entityID, OTP: otp})
	if err != nil {
		return "", fmt.Errorf("failed to encode confirm request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/otp/confirm", bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("failed to build confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var body confirmResponse
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	return handshake.Status(body.Status), nil
}

func (c *Client) do(req *http.Request, out any) error {
	log := c.log.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	})

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("Directory request failed")
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		log.WithField("status_code", resp.StatusCode).Warn("Directory answered with an error")
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.WithError(err).Warn("Failed to decode directory response")
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
