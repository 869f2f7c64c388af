// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/accredix/accredix-backend/internal/config"
	"github.com/accredix/accredix-backend/internal/models"
)

// NotificationService sends lifecycle emails. Every call site treats failure
// as non-fatal: a lost email never fails the business operation that
// triggered it.
type NotificationService struct {
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(config *config.Config) *NotificationService {
	return &NotificationService{config: config}
}

func (s *NotificationService) SendWelcomeEmail(user *models.User) error {
	data := map[string]interface{}{
		"Name":         user.FullName(),
		"PortalURL":    s.config.Frontend.BaseURL,
		"PlatformName": s.config.Email.FromName,
	}
	return s.render("welcome", "Welcome to "+s.config.Email.FromName, user.Email, data)
}

func (s *NotificationService) SendApplicationSubmitted(user *models.User, app *models.Application) error {
	data := map[string]interface{}{
		"Name":          user.FullName(),
		"Type":          string(app.Type),
		"ApplicationID": app.ID.String(),
	}
	return s.render("application_submitted", "Application Received", user.Email, data)
}

func (s *NotificationService) SendApplicationUnderReview(user *models.User, app *models.Application) error {
	data := map[string]interface{}{
		"Name": user.FullName(),
		"Type": string(app.Type),
	}
	return s.render("application_under_review", "Application Under Review", user.Email, data)
}

func (s *NotificationService) SendApplicationApproved(user *models.User, app *models.Application, license *models.License) error {
	data := map[string]interface{}{
		"Name":          user.FullName(),
		"Type":          string(app.Type),
		"LicenseNumber": license.LicenseNumber,
		"ExpiresAt":     formatExpiry(license.ExpiresAt),
		"PortalURL":     s.config.Frontend.BaseURL,
	}
	return s.render("application_approved", "Application Approved", user.Email, data)
}

func (s *NotificationService) SendApplicationRejected(user *models.User, app *models.Application, comment string) error {
	data := map[string]interface{}{
		"Name":    user.FullName(),
		"Type":    string(app.Type),
		"Comment": comment,
	}
	return s.render("application_rejected", "Application Decision", user.Email, data)
}

func (s *NotificationService) SendPasswordReset(user *models.User, resetURL string) error {
	data := map[string]interface{}{
		"Name":     user.FullName(),
		"ResetURL": resetURL,
	}
	return s.render("password_reset", "Password Reset", user.Email, data)
}

func (s *NotificationService) SendDocumentsRequested(user *models.User, app *models.Application, docs []string) error {
	data := map[string]interface{}{
		"Name":      user.FullName(),
		"Documents": docs,
		"PortalURL": s.config.Frontend.BaseURL,
	}
	return s.render("documents_requested", "Additional Documents Required", user.Email, data)
}

func (s *NotificationService) SendRenewalApproved(oldLicense, newLicense *models.License) error {
	data := map[string]interface{}{
		"Name":             newLicense.HolderName,
		"OldLicenseNumber": oldLicense.LicenseNumber,
		"NewLicenseNumber": newLicense.LicenseNumber,
		"ExpiresAt":        formatExpiry(newLicense.ExpiresAt),
	}
	return s.render("renewal_approved", "License Renewal Approved", newLicense.HolderEmail, data)
}

func (s *NotificationService) SendRenewalRejected(license *models.License, reason string) error {
	data := map[string]interface{}{
		"Name":          license.HolderName,
		"LicenseNumber": license.LicenseNumber,
		"Reason":        reason,
	}
	return s.render("renewal_rejected", "License Renewal Rejected", license.HolderEmail, data)
}

func (s *NotificationService) SendLicenseExpired(license *models.License) error {
	data := map[string]interface{}{
		"Name":          license.HolderName,
		"LicenseNumber": license.LicenseNumber,
	}
	return s.render("license_expired", "License Expired", license.HolderEmail, data)
}

// SendSupportMessage relays a contact-form message to the support inbox.
func (s *NotificationService) SendSupportMessage(fromName, fromEmail, message string) error {
	data := map[string]interface{}{
		"Name":    fromName,
		"Email":   fromEmail,
		"Message": message,
	}
	return s.render("support_contact", "Support Request from "+fromName, s.config.Email.SupportEmail, data)
}

func (s *NotificationService) render(templateType, subject, to string, data map[string]interface{}) error {
	tmpl := s.getEmailTemplate(templateType)
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return s.sendEmail(to, subject, body)
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email delivery skipped (SMTP not configured)")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("2 January 2006")
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"welcome": {
			Subject: "Welcome",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Welcome {{.Name}}!</h2>
	<p>Your account has been created. You can sign in and track your application at any time:</p>
	<a href="{{.PortalURL}}">Open Portal</a>
	<p>Best regards,<br>{{.PlatformName}}</p>
</body>
</html>`,
		},
		"application_submitted": {
			Subject: "Application Received",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Dear {{.Name}},</p>
	<p>Your {{.Type}} application has been received and is awaiting review.</p>
	<p>Reference: {{.ApplicationID}}</p>
</body>
</html>`,
		},
		"application_under_review": {
			Subject: "Application Under Review",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Dear {{.Name}},</p>
	<p>Your {{.Type}} application is now under review. We will contact you once a decision is made.</p>
</body>
</html>`,
		},
		"application_approved": {
			Subject: "Application Approved",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Congratulations {{.Name}}!</h2>
	<p>Your {{.Type}} application has been approved.</p>
	<p>License Number: <strong>{{.LicenseNumber}}</strong></p>
	<p>Valid Until: {{.ExpiresAt}}</p>
	<a href="{{.PortalURL}}">View License</a>
</body>
</html>`,
		},
		"application_rejected": {
			Subject: "Application Decision",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Dear {{.Name}},</p>
	<p>We regret to inform you that your {{.Type}} application has been rejected.</p>
	{{if .Comment}}<p>Comment: {{.Comment}}</p>{{end}}
</body>
</html>`,
		},
		"documents_requested": {
			Subject: "Additional Documents Required",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Dear {{.Name}},</p>
	<p>The following documents are required to continue processing your application:</p>
	<ul>{{range .Documents}}<li>{{.}}</li>{{end}}</ul>
	<a href="{{.PortalURL}}">Upload Documents</a>
</body>
</html>`,
		},
		"renewal_approved": {
			Subject: "License Renewal Approved",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Dear {{.Name}},</p>
	<p>Your renewal request has been approved.</p>
	<p>Previous License: {{.OldLicenseNumber}}</p>
	<p>New License Number: <strong>{{.NewLicenseNumber}}</strong></p>
	<p>Valid Until: {{.ExpiresAt}}</p>
</body>
</html>`,
		},
		"renewal_rejected": {
			Subject: "License Renewal Rejected",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Dear {{.Name}},</p>
	<p>Your renewal request for license {{.LicenseNumber}} has been rejected.</p>
	{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
</body>
</html>`,
		},
		"license_expired": {
			Subject: "License Expired",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Dear {{.Name}},</p>
	<p>Your license {{.LicenseNumber}} has expired.</p>
	<p>Please submit a renewal request.</p>
</body>
</html>`,
		},
		"password_reset": {
			Subject: "Password Reset",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Dear {{.Name}},</p>
	<p>We received a request to reset your password. The link below is valid for one hour:</p>
	<p><a href="{{.ResetURL}}">Reset your password</a></p>
	<p>If you did not request this, you can ignore this email.</p>
</body>
</html>`,
		},
		"support_contact": {
			Subject: "Support Request",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>From: {{.Name}} ({{.Email}})</p>
	<p>{{.Message}}</p>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
