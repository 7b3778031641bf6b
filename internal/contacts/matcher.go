// Package contacts implements the client contact-sync read path: bulk
// lookup of phone numbers and platform ids against the user store in
// bounded batches, returning decrypted, field-filtered results.
package contacts

import (
	"context"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/krypto"
	"github.com/flipsapp/flips-backend/internal/model"
	"github.com/flipsapp/flips-backend/prometheus"

	"go.uber.org/zap"
)

// ChunkSize bounds the width of a single IN-predicate lookup
const ChunkSize = 500

// UserStore is the lookup surface the matcher needs
type UserStore interface {
	FindByEncryptedPhones(ctx context.Context, encryptedPhones []string) ([]model.User, error)
	FindByFacebookIDs(ctx context.Context, facebookIDs []string) ([]model.User, error)
}

// Profile is the public projection returned to contact-sync clients.
// Only whitelisted fields leave the server; everything else stays behind.
type Profile struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Birthday    string `json:"birthday"`
	FacebookID  string `json:"facebookID"`
	PhotoURL    string `json:"photoUrl"`
	Nickname    string `json:"nickname"`
	PhoneNumber string `json:"phoneNumber"`
	IsTemporary bool   `json:"isTemporary"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Matcher runs the chunked identity lookups
type Matcher struct {
	users  UserStore
	crypto *krypto.Krypto
	log    *zap.Logger
}

// NewMatcher wires the matcher to the user store and the crypto boundary
func NewMatcher(users UserStore, crypto *krypto.Krypto, log *zap.Logger) *Matcher {
	return &Matcher{users: users, crypto: crypto, log: log}
}

// MatchPhoneNumbers looks up users owning any of the given phone numbers.
// Numbers are encrypted for predicate matching, chunked, and looked up
// sequentially; the accumulated matches are decrypted and projected.
// Degrades to an empty list instead of failing the request.
func (m *Matcher) MatchPhoneNumbers(ctx context.Context, phoneNumbers []string) ([]Profile, error) {
	prometheus.ContactLookupCounter.Inc()
	prometheus.ContactBatchSize.Observe(float64(len(phoneNumbers)))

	encrypted := make([]string, 0, len(phoneNumbers))
	for _, number := range phoneNumbers {
		value, err := m.crypto.Encrypt(number)
		if err != nil {
			m.log.Error("Failed to encrypt lookup phone number", zap.Error(err))
			return []Profile{}, nil
		}
		encrypted = append(encrypted, value)
	}

	var matched []model.User
	for _, batch := range chunk(encrypted, ChunkSize) {
		users, err := m.users.FindByEncryptedPhones(ctx, batch)
		if err != nil {
			return nil, err
		}
		matched = append(matched, users...)
	}

	return m.project(matched), nil
}

// MatchFacebookIDs looks up users by platform id. Platform ids are not
// encrypted at rest, so they match directly.
func (m *Matcher) MatchFacebookIDs(ctx context.Context, facebookIDs []string) ([]Profile, error) {
	if len(facebookIDs) == 0 {
		return nil, apperror.NewValidationError("missing parameter [facebookIDs]")
	}

	prometheus.ContactLookupCounter.Inc()
	prometheus.ContactBatchSize.Observe(float64(len(facebookIDs)))

	var matched []model.User
	for _, batch := range chunk(facebookIDs, ChunkSize) {
		users, err := m.users.FindByFacebookIDs(ctx, batch)
		if err != nil {
			return nil, err
		}
		matched = append(matched, users...)
	}

	return m.project(matched), nil
}

// project decrypts each match and narrows it to the public whitelist.
// Per-record best effort: a record whose fields cannot be decrypted is
// passed through as stored rather than dropping the whole batch.
func (m *Matcher) project(users []model.User) []Profile {
	profiles := make([]Profile, 0, len(users))
	for _, user := range m.crypto.DecryptUsers(users) {
		profiles = append(profiles, Profile{
			ID:          user.ID,
			Username:    user.Username,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			Birthday:    user.Birthday.Format("2006-01-02"),
			FacebookID:  user.FacebookID,
			PhotoURL:    user.PhotoURL,
			Nickname:    user.Nickname,
			PhoneNumber: user.PhoneNumber,
			IsTemporary: user.IsTemporary,
			CreatedAt:   user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:   user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return profiles
}

// chunk partitions values into slices of at most size elements,
// preserving order
func chunk(values []string, size int) [][]string {
	if len(values) == 0 {
		return nil
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
