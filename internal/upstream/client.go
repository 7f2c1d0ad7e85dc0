// Package upstream holds the HTTP client for the participant registry, the
// source system that owns participant and draft records.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"caseflow_backend/internal/participant"
	"caseflow_backend/platform/apperr"
	"caseflow_backend/platform/config"
	"caseflow_backend/platform/logger"
)

const serviceName = "participant-registry"

// Client calls the participant registry REST API with a cached machine token.
// Calls are rate limited so a repair backfill cannot flood the registry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     *tokenSource
	limiter    *rate.Limiter
	log        *logger.Logger
}

func NewClient(cfg config.UpstreamConfig, log *logger.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.GetUpstreamTimeout()}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.GetParticipantRegistryURL(), "/"),
		tokens:     newTokenSource(httpClient, cfg.GetTokenEndpoint(), cfg.GetClientID(), cfg.GetClientSecret()),
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		log:        log,
	}
}

// FetchParticipant retrieves the registry's current snapshot of a participant.
func (c *Client) FetchParticipant(ctx context.Context, id uuid.UUID) (participant.Participant, error) {
	reqURL := fmt.Sprintf("%s/api/v1/participants/%s", c.baseURL, id)

	resp, err := c.doRequest(ctx, http.MethodGet, reqURL)
	if err != nil {
		return participant.Participant{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return participant.Participant{}, c.statusError("fetch participant", resp)
	}

	var api apiParticipant
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return participant.Participant{}, fmt.Errorf("decode participant response: %w", err)
	}

	return api.toDomain()
}

// NotifyDraftDiscarded tells the registry that a draft registration was
// removed on our side. A 404 means the registry already dropped it, which is
// the state we wanted.
func (c *Client) NotifyDraftDiscarded(ctx context.Context, participantID uuid.UUID) error {
	reqURL := fmt.Sprintf("%s/api/v1/participants/%s/draft", c.baseURL, participantID)

	resp, err := c.doRequest(ctx, http.MethodDelete, reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		c.log.Debug("draft already gone upstream", "participantId", participantID)
		return nil
	default:
		return c.statusError("notify draft discarded", resp)
	}
}

func (c *Client) doRequest(ctx context.Context, method, reqURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire registry token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.UpstreamError(serviceName, method+" "+reqURL, 0, err)
		return nil, apperr.Transient("registry request failed", err)
	}

	return resp, nil
}

func (c *Client) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	appErr := apperr.FromUpstreamStatus(op, resp.StatusCode, string(body))
	c.log.UpstreamError(serviceName, op, resp.StatusCode, appErr)
	return appErr
}

type dateOnly struct {
	time.Time
}

func (d *dateOnly) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// apiParticipant is the registry's REST representation, which matches the
// snapshot shape it publishes on the participant stream.
type apiParticipant struct {
	ID          uuid.UUID `json:"id"`
	PersonID    uuid.UUID `json:"personId"`
	OfferingID  uuid.UUID `json:"offeringId"`
	StartDate   *dateOnly `json:"startDate"`
	EndDate     *dateOnly `json:"endDate"`
	Percentage  *float64  `json:"percentage"`
	DaysPerWeek *float64  `json:"daysPerWeek"`
	Background  *string   `json:"background"`
	ModifiedBy  *string   `json:"modifiedBy"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      apiStatus `json:"status"`
}

type apiStatus struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	ReasonType *string   `json:"reasonType"`
	ReasonText *string   `json:"reasonText"`
	ValidFrom  time.Time `json:"validFrom"`
}

func (a apiParticipant) toDomain() (participant.Participant, error) {
	var reason *participant.Reason
	if a.Status.ReasonType != nil {
		r, err := participant.NewReason(participant.ReasonType(*a.Status.ReasonType), a.Status.ReasonText)
		if err != nil {
			return participant.Participant{}, err
		}
		reason = &r
	}

	status, err := participant.NewStatus(a.ID, participant.StatusType(a.Status.Type), reason, a.Status.ValidFrom)
	if err != nil {
		return participant.Participant{}, err
	}
	status.ID = a.Status.ID

	var startDate, endDate *time.Time
	if a.StartDate != nil {
		startDate = &a.StartDate.Time
	}
	if a.EndDate != nil {
		endDate = &a.EndDate.Time
	}

	return participant.Participant{
		ID:          a.ID,
		PersonID:    a.PersonID,
		OfferingID:  a.OfferingID,
		StartDate:   startDate,
		EndDate:     endDate,
		Percentage:  a.Percentage,
		DaysPerWeek: a.DaysPerWeek,
		Background:  a.Background,
		Status:      status,
		ModifiedBy:  a.ModifiedBy,
		ModifiedAt:  a.ModifiedAt,
		CreatedAt:   a.CreatedAt,
	}, nil
}
