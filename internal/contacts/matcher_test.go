package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/flipsapp/flips-backend/internal/krypto"
	"github.com/flipsapp/flips-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUserStore struct {
	byPhone    map[string]model.User
	byFacebook map[string]model.User
	calls      [][]string
}

func (f *fakeUserStore) FindByEncryptedPhones(_ context.Context, phones []string) ([]model.User, error) {
	f.calls = append(f.calls, phones)
	var users []model.User
	for _, phone := range phones {
		if user, ok := f.byPhone[phone]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (f *fakeUserStore) FindByFacebookIDs(_ context.Context, ids []string) ([]model.User, error) {
	f.calls = append(f.calls, ids)
	var users []model.User
	for _, id := range ids {
		if user, ok := f.byFacebook[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func TestChunk(t *testing.T) {
	cases := []struct {
		total int
		size  int
		want  int
	}{
		{0, 500, 0},
		{1, 500, 1},
		{500, 500, 1},
		{501, 500, 2},
		{1200, 500, 3},
	}
	for _, c := range cases {
		values := make([]string, c.total)
		chunks := chunk(values, c.size)
		if len(chunks) != c.want {
			t.Fatalf("chunk(%d, %d) gave %d chunks, want %d", c.total, c.size, len(chunks), c.want)
		}
		var sum int
		for _, part := range chunks {
			if len(part) > c.size {
				t.Fatalf("chunk wider than %d", c.size)
			}
			sum += len(part)
		}
		if sum != c.total {
			t.Fatalf("chunks cover %d values, want %d", sum, c.total)
		}
	}
}

func TestMatchPhoneNumbersChunksSequentially(t *testing.T) {
	store := &fakeUserStore{byPhone: map[string]model.User{}}
	k := krypto.New("test-secret")
	m := NewMatcher(store, k, zap.NewNop())

	numbers := make([]string, 1200)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("+1415555%04d", i)
	}

	// seed two of them as matches
	for _, seeded := range []string{numbers[3], numbers[700]} {
		enc, err := k.Encrypt(seeded)
		require.NoError(t, err)
		store.byPhone[enc] = model.User{ID: 1, PhoneNumber: enc}
	}

	profiles, err := m.MatchPhoneNumbers(context.Background(), numbers)
	require.NoError(t, err)

	// ceil(1200/500) = 3 lookups, issued one at a time
	assert.Len(t, store.calls, 3)
	assert.Len(t, store.calls[0], 500)
	assert.Len(t, store.calls[1], 500)
	assert.Len(t, store.calls[2], 200)
	assert.Len(t, profiles, 2)
}

func TestMatchPhoneNumbersDecryptsAndProjects(t *testing.T) {
	store := &fakeUserStore{byPhone: map[string]model.User{}}
	k := krypto.New("test-secret")
	m := NewMatcher(store, k, zap.NewNop())

	encPhone, err := k.Encrypt("+14155550101")
	require.NoError(t, err)
	encName, err := k.Encrypt("mariah@flips.test")
	require.NoError(t, err)
	store.byPhone[encPhone] = model.User{
		ID:          7,
		Username:    encName,
		PhoneNumber: encPhone,
		Birthday:    time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	profiles, err := m.MatchPhoneNumbers(context.Background(), []string{"+14155550101"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	assert.Equal(t, "mariah@flips.test", profiles[0].Username)
	assert.Equal(t, "+14155550101", profiles[0].PhoneNumber)
	assert.Equal(t, "1990-06-01", profiles[0].Birthday)
}

func TestProfileWhitelist(t *testing.T) {
	// the serialized projection must not leak anything outside the
	// public whitelist
	raw, err := json.Marshal(Profile{})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	allowed := map[string]bool{
		"id": true, "username": true, "firstName": true, "lastName": true,
		"birthday": true, "facebookID": true, "photoUrl": true, "nickname": true,
		"phoneNumber": true, "isTemporary": true, "created_at": true, "updated_at": true,
	}
	for field := range fields {
		assert.True(t, allowed[field], "unexpected field %q in projection", field)
	}
}

func TestMatchFacebookIDs(t *testing.T) {
	store := &fakeUserStore{byFacebook: map[string]model.User{
		"fb-1": {ID: 1, FacebookID: "fb-1"},
	}}
	m := NewMatcher(store, krypto.New("test-secret"), zap.NewNop())

	profiles, err := m.MatchFacebookIDs(context.Background(), []string{"fb-1", "fb-2"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "fb-1", profiles[0].FacebookID)

	_, err = m.MatchFacebookIDs(context.Background(), nil)
	assert.Error(t, err)
}
