package eid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Client talks to one provider REST endpoint (the mobile-ID and smart-ID
// services share the same request shape for the fields we use).
type Client struct {
	endpoint         string
	relyingPartyName string
	relyingPartyUUID string
	http             *http.Client
}

func NewClient(endpoint, relyingPartyName, relyingPartyUUID string) *Client {
	return &Client{
		endpoint:         endpoint,
		relyingPartyName: relyingPartyName,
		relyingPartyUUID: relyingPartyUUID,
		http:             &http.Client{Timeout: 30 * time.Second},
	}
}

type startAuthRequest struct {
	RelyingPartyName string `json:"relyingPartyName"`
	RelyingPartyUUID string `json:"relyingPartyUUID"`
	NationalIdentity string `json:"nationalIdentityNumber"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
}

type startAuthResponse struct {
	SessionID        string `json:"sessionID"`
	VerificationCode string `json:"verificationCode"`
}

func (c *Client) StartAuth(ctx context.Context, personalCode, phoneNumber string) (Session, error) {
	payload, err := json.Marshal(startAuthRequest{
		RelyingPartyName: c.relyingPartyName,
		RelyingPartyUUID: c.relyingPartyUUID,
		NationalIdentity: personalCode,
		PhoneNumber:      phoneNumber,
	})
	if err != nil {
		return Session{}, errors.Wrap(err, "marshal auth request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/authentication", bytes.NewReader(payload))
	if err != nil {
		return Session{}, errors.Wrap(err, "build auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, errors.Wrap(err, "start authentication")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Session{}, errors.Errorf("provider returned status %d", resp.StatusCode)
	}

	var body startAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Session{}, errors.Wrap(err, "decode auth response")
	}
	return Session{ID: body.SessionID, VerificationCode: body.VerificationCode}, nil
}

type statusResponse struct {
	State  string `json:"state"`
	Result string `json:"result"`
	Cert   struct {
		SubjectPersonalCode string `json:"subjectPersonalCode"`
		SubjectGivenName    string `json:"subjectGivenName"`
		SubjectSurname      string `json:"subjectSurname"`
	} `json:"cert"`
}

func (c *Client) AuthStatus(ctx context.Context, sessionID string) (StatusResult, error) {
	url := fmt.Sprintf("%s/authentication/session/%s", c.endpoint, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusResult{}, errors.Wrap(err, "build status request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return StatusResult{}, errors.Wrap(err, "poll authentication status")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StatusResult{}, errors.Errorf("provider returned status %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return StatusResult{}, errors.Wrap(err, "decode status response")
	}

	result := StatusResult{Status: StatusRunning}
	if body.State == "COMPLETE" {
		if body.Result == "OK" {
			result.Status = StatusComplete
			result.Identity = Identity{
				PersonalCode: body.Cert.SubjectPersonalCode,
				GivenName:    body.Cert.SubjectGivenName,
				Surname:      body.Cert.SubjectSurname,
			}
		} else {
			result.Status = StatusFailed
		}
	}
	return result, nil
}
