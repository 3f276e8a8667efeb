package utils

import (
	"context"
	"fmt"

	"leadflow/config"
	"leadflow/engine"
	"leadflow/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// Mailer implements engine.EmailSender over SMTP. The sender identity is
// resolved from the organization row at send time.
type Mailer struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewMailer(db *gorm.DB, logger *logrus.Entry) *Mailer {
	return &Mailer{DB: db, Logger: logger}
}

// Send delivers one outreach email and returns the provider message id. The
// correlation id is stamped into a header so replies and webhooks can be tied
// back to the interaction that produced the message.
func (m *Mailer) Send(ctx context.Context, orgID uint, msg engine.EmailMessage, correlationID string) (string, error) {
	var org models.Organization
	if err := m.DB.WithContext(ctx).First(&org, orgID).Error; err != nil {
		return "", fmt.Errorf("resolving sender identity: %w", err)
	}
	if org.SenderEmail == "" {
		return "", fmt.Errorf("organization %d has no sender identity configured", orgID)
	}

	messageID := fmt.Sprintf("<%s@leadflow>", uuid.New().String())

	gm := gomail.NewMessage()
	gm.SetHeader("From", fmt.Sprintf("%s <%s>", org.SenderName, org.SenderEmail))
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetHeader("Message-ID", messageID)
	gm.SetHeader("X-Leadflow-Interaction", correlationID)
	gm.SetBody("text/html", msg.HTMLBody)

	d := gomail.NewDialer(
		config.AppConfig.SMTP.Host,
		config.AppConfig.SMTP.Port,
		config.AppConfig.SMTP.Username,
		config.AppConfig.SMTP.Password,
	)

	if err := d.DialAndSend(gm); err != nil {
		return "", fmt.Errorf("sending email: %w", err)
	}

	m.Logger.WithFields(logrus.Fields{
		"org_id":     orgID,
		"to":         msg.To,
		"message_id": messageID,
	}).Info("email sent")

	return messageID, nil
}
