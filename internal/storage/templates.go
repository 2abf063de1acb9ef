package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EmailTemplate is a per-client receipt or notification template.
type EmailTemplate struct {
	ClientID  string
	Name      string
	Subject   string
	Body      string
	UpdatedAt time.Time
}

func (r *SQLiteRepository) UpsertEmailTemplate(ctx context.Context, t EmailTemplate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_templates (client_id, template_name, subject, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (client_id, template_name) DO UPDATE SET subject = excluded.subject, body = excluded.body, updated_at = excluded.updated_at`,
		t.ClientID, t.Name, t.Subject, t.Body, fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert email template: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetEmailTemplate(ctx context.Context, clientID, name string) (EmailTemplate, error) {
	var (
		t       EmailTemplate
		updated string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT client_id, template_name, subject, body, updated_at
		FROM email_templates WHERE client_id = ? AND template_name = ?`, clientID, name).
		Scan(&t.ClientID, &t.Name, &t.Subject, &t.Body, &updated)
	if err == sql.ErrNoRows {
		return EmailTemplate{}, ErrNotFound
	}
	if err != nil {
		return EmailTemplate{}, fmt.Errorf("get email template: %w", err)
	}
	t.UpdatedAt = parseStoredTime(updated)
	return t, nil
}

func (r *SQLiteRepository) ListEmailTemplates(ctx context.Context, clientID string) ([]EmailTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT client_id, template_name, subject, body, updated_at
		FROM email_templates WHERE client_id = ? ORDER BY template_name`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list email templates: %w", err)
	}
	defer rows.Close()

	var templates []EmailTemplate
	for rows.Next() {
		var (
			t       EmailTemplate
			updated string
		)
		if err := rows.Scan(&t.ClientID, &t.Name, &t.Subject, &t.Body, &updated); err != nil {
			return nil, fmt.Errorf("scan email template: %w", err)
		}
		t.UpdatedAt = parseStoredTime(updated)
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
