package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// EmailSender is the part of the SES client the email service uses
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client    EmailSender
	fromEmail string
	fromName  string
	enabled   bool
	logger    *zap.Logger
}

// NewEmailService creates a new email service. An empty fromEmail creates a
// disabled service that logs and skips every send.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string, logger *zap.Logger) (*EmailService, error) {
	logger = logger.Named("email")

	if fromEmail == "" {
		logger.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, logger: logger}, nil
	}

	logger.Debug("Initializing email service with AWS SES",
		zap.String("region", awsRegion),
		zap.String("from_email", fromEmail),
		zap.String("from_name", fromName))

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("Email service enabled", zap.String("from", fromEmail), zap.String("region", awsRegion))
	return NewEmailServiceWithSender(sesv2.NewFromConfig(cfg), fromEmail, fromName, logger), nil
}

// NewEmailServiceWithSender creates an enabled email service around sender
func NewEmailServiceWithSender(sender EmailSender, fromEmail, fromName string, logger *zap.Logger) *EmailService {
	return &EmailService{
		client:    sender,
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		logger:    logger,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

type emailContent struct {
	Name    string
	Link    string
	Heading string
	Intro   string
	Action  string
	Footer  string
}

var emailHTML = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #007d6e; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #43a42f; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>{{.Heading}}</h1>
		</div>
		<div class="content">
			<p>Hi {{.Name}},</p>
			<p>{{.Intro}}</p>
			<p style="text-align: center;">
				<a href="{{.Link}}" class="button">{{.Action}}</a>
			</p>
			<p>Or copy and paste this link into your browser:</p>
			<p style="word-break: break-all; font-size: 12px; color: #666;">{{.Link}}</p>
			<p>{{.Footer}}</p>
		</div>
		<div class="footer">
			<p>This is an automated email from Quad. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`))

func (c emailContent) text() string {
	return fmt.Sprintf(`Hi %s,

%s

%s:
%s

%s

---
This is an automated email from Quad. Please do not reply.
`, c.Name, c.Intro, c.Action, c.Link, c.Footer)
}

// SendConfirmationEmail sends the link that verifies a new account's email
func (s *EmailService) SendConfirmationEmail(ctx context.Context, toEmail, toName, link string) error {
	return s.send(ctx, toEmail, "Confirm your Quad account", emailContent{
		Name:    displayName(toName),
		Link:    link,
		Heading: "Welcome to Quad",
		Intro:   "Thanks for signing up! Please confirm your email address to activate your account.",
		Action:  "Confirm Email",
		Footer:  "If you didn't create a Quad account, you can safely ignore this email.",
	})
}

// SendPasswordResetEmail sends a password reset email with a reset link
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, toName, link string) error {
	return s.send(ctx, toEmail, "Reset your Quad password", emailContent{
		Name:    displayName(toName),
		Link:    link,
		Heading: "Password Reset Request",
		Intro:   "We received a request to reset the password for your Quad account.",
		Action:  "Reset Password",
		Footer:  "This link will expire in 1 hour. If you didn't request a password reset, you can safely ignore this email.",
	})
}

func (s *EmailService) send(ctx context.Context, toEmail, subject string, content emailContent) error {
	if !s.enabled {
		s.logger.Info("Skipping email send (service disabled)", zap.String("to", toEmail), zap.String("subject", subject))
		s.logger.Debug("Undelivered email link", zap.String("to", toEmail), zap.String("link", content.Link))
		return nil
	}

	var html bytes.Buffer
	if err := emailHTML.Execute(&html, content); err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	return s.sendEmail(ctx, toEmail, subject, html.String(), content.text())
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	fields := []zap.Field{zap.String("to", toEmail), zap.String("subject", subject)}
	if result != nil && result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	s.logger.Info("Email sent successfully", fields...)
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
