package mailer

import (
	"context"
	"embed"
)

const (
	FromName               = "Ecommerce Customer Success"
	maxRetries             = 3
	AssignmentCodeTemplate = "assignment_code.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(ctx context.Context, templateFile, email string, data any) error
}

// AssignmentData fills AssignmentCodeTemplate.
type AssignmentData struct {
	EnterpriseName string
	Code           string
	EnrollmentURL  string
}
