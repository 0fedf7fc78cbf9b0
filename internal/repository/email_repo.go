package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailroom/internal/model"
)

type EmailRepository struct {
	db *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{db: db}
}

// Insert persists a newly fetched message and returns its id. A unique index
// on gmail_message_id makes concurrent double-inserts fail with a 23505,
// which callers treat as a benign race.
func (r *EmailRepository) Insert(ctx context.Context, e *model.Email) (int, error) {
	query := `
        INSERT INTO emails
            (gmail_message_id, header_message_id, thread_id, subject,
             sender_name, sender_email, sent_at, label_ids, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING id
    `
	var id int
	err := r.db.QueryRow(ctx, query,
		e.GmailMessageID,
		e.HeaderMessageID,
		e.ThreadID,
		e.Subject,
		e.SenderName,
		e.SenderEmail,
		e.SentAt,
		e.LabelIDs,
	).Scan(&id)
	return id, err
}

// FilterExisting returns which of the given gmail message ids already have a
// stored row. Dedup is pure id-set membership; ordering across provider pages
// does not matter.
func (r *EmailRepository) FilterExisting(ctx context.Context, gmailIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(gmailIDs) == 0 {
		return existing, nil
	}

	query := `
        SELECT gmail_message_id
        FROM emails
        WHERE gmail_message_id = ANY($1)
    `
	rows, err := r.db.Query(ctx, query, gmailIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}

	return existing, rows.Err()
}

// FindByID returns a stored email by internal id.
func (r *EmailRepository) FindByID(ctx context.Context, id int) (*model.Email, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByGmailMessageID returns a stored email by its natural key.
func (r *EmailRepository) FindByGmailMessageID(ctx context.Context, gmailID string) (*model.Email, error) {
	return r.findOne(ctx, `WHERE gmail_message_id = $1`, gmailID)
}

func (r *EmailRepository) findOne(ctx context.Context, where string, arg any) (*model.Email, error) {
	query := `
        SELECT id, gmail_message_id, header_message_id, thread_id, subject,
               sender_name, sender_email, sent_at, label_ids, semantic_labels,
               created_at, updated_at
        FROM emails
    ` + where

	var e model.Email
	var semantic []string
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&e.ID,
		&e.GmailMessageID,
		&e.HeaderMessageID,
		&e.ThreadID,
		&e.Subject,
		&e.SenderName,
		&e.SenderEmail,
		&e.SentAt,
		&e.LabelIDs,
		&semantic,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if semantic != nil {
		e.SemanticLabels = make([]model.SemanticLabel, 0, len(semantic))
		for _, s := range semantic {
			e.SemanticLabels = append(e.SemanticLabels, model.SemanticLabel(s))
		}
	}
	return &e, nil
}

// UpdateSemanticLabels sets the classifier's decision on a stored email.
// Re-applying the same decision is a plain overwrite, hence idempotent.
func (r *EmailRepository) UpdateSemanticLabels(ctx context.Context, id int, labels []model.SemanticLabel) error {
	values := make([]string, 0, len(labels))
	for _, l := range labels {
		values = append(values, string(l))
	}

	query := `
        UPDATE emails
        SET semantic_labels = $1, updated_at = NOW()
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, values, id)
	return err
}

// List returns stored emails newest first.
func (r *EmailRepository) List(ctx context.Context, limit, offset int) ([]model.Email, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
        SELECT id, gmail_message_id, header_message_id, thread_id, subject,
               sender_name, sender_email, sent_at, label_ids, semantic_labels,
               created_at, updated_at
        FROM emails
        ORDER BY sent_at DESC NULLS LAST, id DESC
        LIMIT $1 OFFSET $2
    `
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.Email{}
	for rows.Next() {
		var e model.Email
		var semantic []string
		err := rows.Scan(
			&e.ID,
			&e.GmailMessageID,
			&e.HeaderMessageID,
			&e.ThreadID,
			&e.Subject,
			&e.SenderName,
			&e.SenderEmail,
			&e.SentAt,
			&e.LabelIDs,
			&semantic,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		for _, s := range semantic {
			e.SemanticLabels = append(e.SemanticLabels, model.SemanticLabel(s))
		}
		emails = append(emails, e)
	}

	return emails, rows.Err()
}

// ErrNotFound re-exports pgx.ErrNoRows so callers outside the repository
// layer do not import pgx directly.
var ErrNotFound = pgx.ErrNoRows
