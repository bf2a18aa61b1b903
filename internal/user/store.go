package user

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/Marquee/internal/database"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound = errors.New("user does not exist")

	// ErrEmailTaken is raised when creating a user whose email address is
	// already registered.
	ErrEmailTaken = errors.New("email address is already in use")
)

type (
	// User is one registered account. The password is only ever persisted
	// as an argon2id hash alongside its salt; neither leaves this package.
	User struct {
		ID                   uuid.UUID  `db:"id" json:"id"`
		Email                string     `db:"email" json:"email"`
		HashedPassword       []byte     `db:"password" json:"-"`
		HashSalt             []byte     `db:"salt" json:"-"`
		PreferencesCompleted bool       `db:"preferences_completed" json:"preferencesCompleted"`
		CreatedAt            time.Time  `db:"created_at" json:"-"`
		UpdatedAt            time.Time  `db:"updated_at" json:"-"`
		LastLoginAt          *time.Time `db:"last_login" json:"-"`
		LastRefreshAt        *time.Time `db:"last_refresh" json:"-"`
	}

	// Preferences is a user's onboarding state: whether they have completed
	// the genre-selection step, and the genres they picked.
	Preferences struct {
		Completed bool  `json:"preferencesCompleted"`
		GenreIDs  []int `json:"genreIds"`
	}

	Store struct{}
)

func NewStore() *Store {
	return &Store{}
}

func (store *Store) Create(db database.Queryable, email string, rawPassword []byte) (*User, error) {
	hash, salt, err := hashPassword(rawPassword, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to hash provided password: %w", err)
	}

	userID := uuid.New()
	_, err = db.Exec(`
		INSERT INTO users(id, email, password, salt, created_at, updated_at, last_login, last_refresh)
		VALUES ($1, $2, $3, $4, current_timestamp, current_timestamp, NULL, NULL)
	`, userID, email, hash, salt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrEmailTaken
		}

		return nil, fmt.Errorf("failed to insert new user: %w", err)
	}

	return store.GetWithID(db, userID)
}

// GetWithEmailAndPassword finds a user with the matching email and returns
// it IF and ONLY IF the raw (unhashed) password provided hashes to the same
// value using the salt stored against the existing user.
func (store *Store) GetWithEmailAndPassword(db database.Queryable, email string, rawPassword []byte) (*User, error) {
	query, args, err := selectUserBuilder().Where("users.email=?", email).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select user query: %w", err)
	}

	var found User
	if err := db.Get(&found, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find user with email %s: %w", email, err)
	}

	if err := comparePassword(found.HashedPassword, found.HashSalt, rawPassword); err != nil {
		return nil, fmt.Errorf("password supplied for user %s is invalid: %v", email, err)
	}

	return &found, nil
}

func (store *Store) GetWithID(db database.Queryable, id uuid.UUID) (*User, error) {
	query, args, err := selectUserBuilder().Where("users.id=?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select user query: %w", err)
	}

	var found User
	if err := db.Get(&found, db.Rebind(query), args...); err != nil {
		return nil, ErrUserNotFound
	}

	return &found, nil
}

func (store *Store) RecordLogin(db database.Queryable, userID uuid.UUID) error {
	_, err := db.Exec(`UPDATE users SET last_login=current_timestamp WHERE id = $1`, userID)
	return err
}

func (store *Store) RecordRefresh(db database.Queryable, userID uuid.UUID) error {
	_, err := db.Exec(`UPDATE users SET last_refresh=current_timestamp WHERE id = $1`, userID)
	return err
}

// GetPreferences returns the user's onboarding state. A user who has never
// submitted preferences yields Completed=false and an empty genre set.
func (store *Store) GetPreferences(db database.Queryable, userID uuid.UUID) (*Preferences, error) {
	var completed bool
	if err := db.Get(&completed, `SELECT preferences_completed FROM users WHERE id=$1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	genreIDs := make([]int, 0)
	if err := db.Select(&genreIDs, `SELECT genre_id FROM user_genre_preference WHERE user_id=$1 ORDER BY genre_id`, userID); err != nil {
		return nil, err
	}

	return &Preferences{Completed: completed, GenreIDs: genreIDs}, nil
}

// ReplacePreferences swaps the user's preferred genre set for the one
// provided and marks onboarding as complete. The replacement is total; an
// empty set is a valid selection. Expected to be run inside a transaction.
func (store *Store) ReplacePreferences(db database.Queryable, userID uuid.UUID, genreIDs []int) error {
	if _, err := db.Exec(`DELETE FROM user_genre_preference WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("failed to clear genre preferences for user %s: %w", userID, err)
	}

	for _, genreID := range genreIDs {
		_, err := db.Exec(`
			INSERT INTO user_genre_preference(user_id, genre_id)
			VALUES ($1, $2)
			ON CONFLICT(user_id, genre_id) DO NOTHING
		`, userID, genreID)
		if err != nil {
			return fmt.Errorf("failed to insert genre preference %d for user %s: %w", genreID, userID, err)
		}
	}

	if _, err := db.Exec(`UPDATE users SET preferences_completed=TRUE, updated_at=current_timestamp WHERE id=$1`, userID); err != nil {
		return fmt.Errorf("failed to mark preferences complete for user %s: %w", userID, err)
	}

	return nil
}

func selectUserBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select("users.*").
		From("users")
}
