package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/biasharahub/biashara/internal/models"
	pkglogger "github.com/biasharahub/biashara/pkg/logger"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendAccountLocked(ctx context.Context, to string, realm models.Realm, lockedUntil time.Time) error
	SendWelcome(ctx context.Context, to, businessName, loginURL string) error
}

// sesAPI is the part of the SES client we call.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

func (s *AWSSESEmailService) SendAccountLocked(ctx context.Context, to string, realm models.Realm, lockedUntil time.Time) error {
	subject, text, htmlBody := accountLockedEmail(realm, lockedUntil)
	return s.send(ctx, to, subject, text, htmlBody)
}

func (s *AWSSESEmailService) SendWelcome(ctx context.Context, to, businessName, loginURL string) error {
	subject, text, htmlBody := welcomeEmail(businessName, loginURL)
	return s.send(ctx, to, subject, text, htmlBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, text, htmlBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(text)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "email sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("subject", subject),
		slog.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}

// LogEmailService writes emails to the log. Used when no SES region is configured.
type LogEmailService struct {
	logger *slog.Logger
}

func NewLogEmailService(logger *slog.Logger) *LogEmailService {
	return &LogEmailService{logger: logger}
}

func (s *LogEmailService) SendAccountLocked(ctx context.Context, to string, realm models.Realm, lockedUntil time.Time) error {
	subject, _, _ := accountLockedEmail(realm, lockedUntil)
	s.log(ctx, to, subject)
	return nil
}

func (s *LogEmailService) SendWelcome(ctx context.Context, to, businessName, loginURL string) error {
	subject, _, _ := welcomeEmail(businessName, loginURL)
	s.log(ctx, to, subject)
	return nil
}

func (s *LogEmailService) log(ctx context.Context, to, subject string) {
	s.logger.InfoContext(ctx, "email not sent, delivery disabled",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("subject", subject),
	)
}

func accountLockedEmail(realm models.Realm, lockedUntil time.Time) (subject, text, htmlBody string) {
	until := lockedUntil.UTC().Format("15:04 MST, 2 Jan 2006")
	area := "business dashboard"
	if realm == models.RealmPlatform {
		area = "platform console"
	}

	subject = "Your account has been temporarily locked"
	text = fmt.Sprintf(`We noticed several failed sign-in attempts on your %s account.

For your protection the account is locked until %s. You can sign in again after that.

If this was not you, reset your password as soon as the lock expires.
`, area, until)
	htmlBody = fmt.Sprintf(`<p>We noticed several failed sign-in attempts on your %s account.</p>
<p>For your protection the account is locked until <strong>%s</strong>. You can sign in again after that.</p>
<p>If this was not you, reset your password as soon as the lock expires.</p>`, html.EscapeString(area), html.EscapeString(until))
	return subject, text, htmlBody
}

func welcomeEmail(businessName, loginURL string) (subject, text, htmlBody string) {
	subject = fmt.Sprintf("Karibu! %s is ready", businessName)
	text = fmt.Sprintf(`Karibu Biashara!

Your business %s has been created with a free trial. Sign in here:

%s
`, businessName, loginURL)
	htmlBody = fmt.Sprintf(`<h1>Karibu Biashara!</h1>
<p>Your business <strong>%s</strong> has been created with a free trial.</p>
<p><a href="%s">Sign in to your dashboard</a></p>`, html.EscapeString(businessName), html.EscapeString(loginURL))
	return subject, text, htmlBody
}
