package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

// SuggestionRepository persists which tracks have already been suggested to a
// user. Membership is keyed by (user email, track id).
type SuggestionRepository struct {
	db *sql.DB
}

// NewSuggestionRepository creates a new SuggestionRepository with the given database connection
func NewSuggestionRepository(db *sql.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Seen reports which of the given track ids have previously been suggested to
// the user. Returns a set; ids absent from the result were never suggested.
func (r *SuggestionRepository) Seen(email string, trackIDs []string) (map[string]bool, error) {
	seen := make(map[string]bool)
	if len(trackIDs) == 0 {
		return seen, nil
	}

	placeholders := strings.Repeat("?,", len(trackIDs))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT track_id FROM suggestions
		WHERE user_email = ? AND track_id IN (%s)
	`, placeholders)

	args := make([]any, 0, len(trackIDs)+1)
	args = append(args, email)
	for _, id := range trackIDs {
		args = append(args, id)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var trackID string
		if err := rows.Scan(&trackID); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		seen[trackID] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suggestions: %w", err)
	}

	return seen, nil
}

// Record marks the given suggestions as seen for the user. Re-recording a
// track that is already present is a no-op, so concurrent suggestion requests
// cannot fail on the uniqueness constraint.
func (r *SuggestionRepository) Record(email string, suggestions []models.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT OR IGNORE INTO suggestions (id, user_email, track_id, track_name, artist, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	for _, s := range suggestions {
		if _, err := tx.Exec(query, shared.GenerateID(), email, s.TrackID, s.Name, s.Artist, now); err != nil {
			return fmt.Errorf("failed to insert suggestion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit suggestions: %w", err)
	}

	return nil
}

// CountForUser returns how many distinct tracks have been suggested to the user.
func (r *SuggestionRepository) CountForUser(email string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM suggestions WHERE user_email = ?`, email).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count suggestions: %w", err)
	}
	return count, nil
}
