package utils

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"leadflow/config"
	"leadflow/models"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const personalizeTimeout = 30 * time.Second

// RenderTemplate substitutes {{placeholder}} tokens with lead fields. Tokens
// without a value are left in place; the plain-text projection strips them
// at record time.
func RenderTemplate(body string, lead *models.Lead) string {
	firstName := ""
	if lead != nil {
		firstName = lead.FirstContactName()
	}
	replacer := strings.NewReplacer(
		"{{first_name}}", firstName,
		"{{company}}", safeDisplayName(lead),
		"{{email}}", safeField(lead, func(l *models.Lead) string { return l.Email }),
		"{{city}}", safeField(lead, func(l *models.Lead) string { return l.City }),
		"{{segment}}", safeField(lead, func(l *models.Lead) string { return l.Segment }),
	)
	return replacer.Replace(body)
}

func safeDisplayName(lead *models.Lead) string {
	if lead == nil {
		return ""
	}
	return lead.DisplayName()
}

func safeField(lead *models.Lead, get func(*models.Lead) string) string {
	if lead == nil {
		return ""
	}
	return get(lead)
}

// Personalizer rewrites a rendered template through the hosted AI service.
// Failures always fall back to the rendered input; personalization can never
// abort a send.
type Personalizer struct {
	APIURL string
	APIKey string
	Client *fasthttp.Client
	Logger *logrus.Entry
}

func NewPersonalizer(cfg config.AIConfig, logger *logrus.Entry) *Personalizer {
	return &Personalizer{
		APIURL: cfg.APIURL,
		APIKey: cfg.APIKey,
		Client: &fasthttp.Client{},
		Logger: logger,
	}
}

type personalizeRequest struct {
	OrganizationID uint   `json:"organization_id"`
	Channel        string `json:"channel"`
	Body           string `json:"body"`
	LeadName       string `json:"lead_name"`
	LeadSegment    string `json:"lead_segment"`
	ContactName    string `json:"contact_name"`
}

type personalizeResponse struct {
	Body    string `json:"body"`
	Subject string `json:"subject"`
}

// Personalize returns the AI-rewritten body and an optional subject. On any
// failure it returns the input body unchanged and no error.
func (p *Personalizer) Personalize(ctx context.Context, channel, body string, lead *models.Lead, orgID uint) (string, string) {
	if p.APIURL == "" {
		return body, ""
	}

	payload, err := json.Marshal(personalizeRequest{
		OrganizationID: orgID,
		Channel:        channel,
		Body:           body,
		LeadName:       safeDisplayName(lead),
		LeadSegment:    safeField(lead, func(l *models.Lead) string { return l.Segment }),
		ContactName:    safeField(lead, func(l *models.Lead) string { return l.FirstContactName() }),
	})
	if err != nil {
		return body, ""
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.APIURL + "/v1/personalize")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.SetBody(payload)

	if err := p.Client.DoTimeout(req, resp, personalizeTimeout); err != nil {
		p.Logger.WithError(err).Warn("personalization service unreachable, using rendered template")
		return body, ""
	}
	if resp.StatusCode() >= 300 {
		p.Logger.WithField("status", resp.StatusCode()).Warn("personalization rejected, using rendered template")
		return body, ""
	}

	var out personalizeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.Body == "" {
		p.Logger.Warn("unusable personalization response, using rendered template")
		return body, ""
	}

	return out.Body, out.Subject
}
