package store

import (
	"context"
	"fmt"
	"time"
)

// Rating is a coarse thumbs-up/thumbs-down review rating, matching the
// original system's ReviewRating enum (no numeric star scale).
type Rating string

const (
	RatingPositive Rating = "POSITIVE"
	RatingNegative Rating = "NEGATIVE"
)

type Review struct {
	ID        string
	EscrowID  string
	AuthorID  string
	SubjectID string
	Rating    Rating
	Comment   string
	CreatedAt time.Time
}

type ReviewStore struct{ s *Store }

func (s *Store) Reviews() *ReviewStore { return &ReviewStore{s: s} }

func (r *ReviewStore) Insert(ctx context.Context, rv *Review) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, escrow_id, author_id, subject_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rv.ID, rv.EscrowID, rv.AuthorID, rv.SubjectID, string(rv.Rating), rv.Comment)
	if err != nil {
		return fmt.Errorf("store: insert review: %w", err)
	}
	return nil
}

// ListForSubject returns every review left about subjectID, the data a
// reputation summary (outside this service's scope) would aggregate.
func (r *ReviewStore) ListForSubject(ctx context.Context, subjectID string) ([]*Review, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, escrow_id, author_id, subject_id, rating, comment, created_at
		FROM reviews WHERE subject_id = $1 ORDER BY created_at DESC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("store: list reviews: %w", err)
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		var rv Review
		var rating string
		if err := rows.Scan(&rv.ID, &rv.EscrowID, &rv.AuthorID, &rv.SubjectID, &rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		rv.Rating = Rating(rating)
		out = append(out, &rv)
	}
	return out, rows.Err()
}
