package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadflow/config"
	"leadflow/engine"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const whatsappSendTimeout = 15 * time.Second

// WhatsAppClient implements engine.WhatsAppSender against the hosted
// WhatsApp gateway's HTTP API. Credit accounting happens in the engine, not
// here: by the time Send is called the credit is already consumed.
type WhatsAppClient struct {
	APIURL   string
	APIToken string
	Client   *fasthttp.Client
	Logger   *logrus.Entry
}

func NewWhatsAppClient(cfg config.WhatsAppConfig, logger *logrus.Entry) *WhatsAppClient {
	return &WhatsAppClient{
		APIURL:   cfg.APIURL,
		APIToken: cfg.APIToken,
		Client:   &fasthttp.Client{},
		Logger:   logger,
	}
}

type whatsappSendRequest struct {
	OrganizationID uint   `json:"organization_id"`
	To             string `json:"to"`
	Body           string `json:"body"`
}

type whatsappSendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

func (w *WhatsAppClient) Send(ctx context.Context, orgID uint, msg engine.WhatsAppMessage) (string, error) {
	payload, err := json.Marshal(whatsappSendRequest{
		OrganizationID: orgID,
		To:             msg.To,
		Body:           msg.Body,
	})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(w.APIURL + "/v1/messages")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+w.APIToken)
	req.SetBody(payload)

	if err := w.Client.DoTimeout(req, resp, whatsappSendTimeout); err != nil {
		return "", fmt.Errorf("whatsapp gateway unreachable: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return "", fmt.Errorf("whatsapp gateway returned status %d", resp.StatusCode())
	}

	var out whatsappSendResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decoding whatsapp gateway response: %w", err)
	}
	if !out.Success {
		return "", fmt.Errorf("whatsapp send rejected: %s", out.Error)
	}

	w.Logger.WithFields(logrus.Fields{
		"org_id":     orgID,
		"to":         msg.To,
		"message_id": out.MessageID,
	}).Info("whatsapp message sent")

	return out.MessageID, nil
}
