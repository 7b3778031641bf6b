package identity

import (
	"context"
	"testing"
	"time"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/krypto"
	"github.com/flipsapp/flips-backend/internal/model"
	"github.com/flipsapp/flips-backend/internal/verification"
	"github.com/flipsapp/flips-backend/pkg/config"
	"github.com/flipsapp/flips-backend/pkg/jwtutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeUserStore keeps users in a map keyed by id
type fakeUserStore struct {
	users  map[uint]*model.User
	nextID uint
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uint]*model.User{}, nextID: 1}
}

func (f *fakeUserStore) FindByID(_ context.Context, id uint) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, apperror.NewNotFoundError("user not found")
}

func (f *fakeUserStore) FindByEncryptedPhone(_ context.Context, phone string) (*model.User, error) {
	for _, u := range f.users {
		if u.PhoneNumber == phone {
			copy := *u
			return &copy, nil
		}
	}
	return nil, apperror.NewNotFoundError("user not found")
}

func (f *fakeUserStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, apperror.NewNotFoundError("user not found")
}

func (f *fakeUserStore) FindByUsernameAndPhone(_ context.Context, username, phone string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username && u.PhoneNumber == phone {
			copy := *u
			return &copy, nil
		}
	}
	return nil, apperror.NewNotFoundError("username and/or phone number do not match any user")
}

func (f *fakeUserStore) Create(_ context.Context, user *model.User) error {
	user.ID = f.nextID
	f.nextID++
	copy := *user
	f.users[user.ID] = &copy
	return nil
}

func (f *fakeUserStore) Save(_ context.Context, user *model.User) error {
	copy := *user
	f.users[user.ID] = &copy
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, user *model.User) error {
	delete(f.users, user.ID)
	return nil
}

// fakeDeviceStore keeps devices in a map and also satisfies the
// verifier's store interface
type fakeDeviceStore struct {
	devices map[uint]*model.Device
	nextID  uint
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{devices: map[uint]*model.Device{}, nextID: 1}
}

func (f *fakeDeviceStore) FindByID(_ context.Context, id uint) (*model.Device, error) {
	if d, ok := f.devices[id]; ok {
		copy := *d
		return &copy, nil
	}
	return nil, apperror.NewNotFoundError("device not found")
}

func (f *fakeDeviceStore) FindByUser(_ context.Context, userID uint) (*model.Device, error) {
	for _, d := range f.devices {
		if d.UserID == userID {
			copy := *d
			return &copy, nil
		}
	}
	return nil, apperror.NewNotFoundError("device not found")
}

func (f *fakeDeviceStore) Create(_ context.Context, device *model.Device) error {
	device.ID = f.nextID
	f.nextID++
	copy := *device
	f.devices[device.ID] = &copy
	return nil
}

func (f *fakeDeviceStore) Save(_ context.Context, device *model.Device) error {
	copy := *device
	f.devices[device.ID] = &copy
	return nil
}

// fakePassportStore keeps one passport per user
type fakePassportStore struct {
	passports map[uint]*model.Passport
	createErr error
}

func newFakePassportStore() *fakePassportStore {
	return &fakePassportStore{passports: map[uint]*model.Passport{}}
}

func (f *fakePassportStore) Create(_ context.Context, passport *model.Passport) error {
	if f.createErr != nil {
		return f.createErr
	}
	copy := *passport
	f.passports[passport.UserID] = &copy
	return nil
}

func (f *fakePassportStore) FindByUser(_ context.Context, userID uint) (*model.Passport, error) {
	if p, ok := f.passports[userID]; ok {
		copy := *p
		return &copy, nil
	}
	return nil, apperror.NewNotFoundError("passport not found")
}

func (f *fakePassportStore) UpdatePassword(_ context.Context, userID uint, hash string) (int64, error) {
	p, ok := f.passports[userID]
	if !ok {
		return 0, nil
	}
	p.Password = hash
	return 1, nil
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendSMS(_ context.Context, to, message string) error {
	f.sent = append(f.sent, to+"|"+message)
	return nil
}

type fixture struct {
	users     *fakeUserStore
	devices   *fakeDeviceStore
	passports *fakePassportStore
	sender    *fakeSender
	crypto    *krypto.Krypto
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newFakeUserStore()
	devices := newFakeDeviceStore()
	passports := newFakePassportStore()
	sender := &fakeSender{}
	crypto := krypto.New("test-secret")
	verifier := verification.NewVerifier(devices, sender, crypto, "Your Flips verification code: %s", zap.NewNop())
	jwt := jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})
	service := NewService(users, devices, passports, verifier, crypto, jwt, zap.NewNop())
	return &fixture{
		users: users, devices: devices, passports: passports,
		sender: sender, crypto: crypto, service: service,
	}
}

func (fx *fixture) seedUser(t *testing.T, phone, email string, facebookID string) *model.User {
	t.Helper()
	encPhone, err := fx.crypto.Encrypt(phone)
	require.NoError(t, err)
	encEmail, err := fx.crypto.Encrypt(email)
	require.NoError(t, err)
	user := &model.User{
		Username:    encEmail,
		PhoneNumber: encPhone,
		FacebookID:  facebookID,
		Birthday:    time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, fx.users.Create(context.Background(), user))
	return user
}

func TestForgotRejectsFederatedAccountBeforeAnySideEffect(t *testing.T) {
	fx := newFixture(t)
	fx.seedUser(t, "+14155550101", "fed@flips.test", "fb-123")

	_, err := fx.service.Forgot(context.Background(), ForgotInput{PhoneNumber: "+14155550101"})

	require.Error(t, err)
	assert.True(t, apperror.IsType(err, apperror.PolicyError))
	// no device created, no sms dispatched
	assert.Empty(t, fx.devices.devices)
	assert.Empty(t, fx.sender.sent)
}

func TestForgotUnknownPhone(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.Forgot(context.Background(), ForgotInput{PhoneNumber: "+14155550199"})
	assert.True(t, apperror.IsType(err, apperror.NotFoundError))
}

func TestForgotCreatesDeviceWhenNoneSupplied(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")

	deviceID, err := fx.service.Forgot(context.Background(), ForgotInput{
		PhoneNumber: "+14155550101",
		Platform:    "ios",
		DeviceToken: "push-token-1",
	})
	require.NoError(t, err)

	device, err := fx.devices.FindByID(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, device.UserID)
	assert.Equal(t, "ios", device.Platform)
	// the number the reset was requested for is bound to the new device
	assert.Equal(t, "+14155550101", device.PhoneNumber)
	assert.NotEmpty(t, device.VerificationCode)
	assert.Equal(t, 0, device.RetryCount)
	require.Len(t, fx.sender.sent, 1)
	assert.Contains(t, fx.sender.sent[0], "+14155550101|")
}

func TestForgotReusesSuppliedDevice(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	device := &model.Device{UserID: user.ID, Platform: "ios", PhoneNumber: "+14155550101", VerificationCode: "1111", RetryCount: 2}
	require.NoError(t, fx.devices.Create(context.Background(), device))

	deviceID, err := fx.service.Forgot(context.Background(), ForgotInput{
		PhoneNumber: "+14155550101",
		DeviceID:    device.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, device.ID, deviceID)

	stored, err := fx.devices.FindByID(context.Background(), device.ID)
	require.NoError(t, err)
	// fresh code supersedes the old one and resets the retry budget
	assert.NotEqual(t, "1111", stored.VerificationCode)
	assert.Equal(t, 0, stored.RetryCount)
}

func TestForgotRejectsForeignDevice(t *testing.T) {
	fx := newFixture(t)
	fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	other := fx.seedUser(t, "+14155550102", "other@flips.test", "")
	device := &model.Device{UserID: other.ID, Platform: "ios"}
	require.NoError(t, fx.devices.Create(context.Background(), device))

	_, err := fx.service.Forgot(context.Background(), ForgotInput{
		PhoneNumber: "+14155550101",
		DeviceID:    device.ID,
	})
	assert.True(t, apperror.IsType(err, apperror.ValidationError))
}

func TestVerifyForResetPromotesTemporaryUser(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	user.IsTemporary = true
	require.NoError(t, fx.users.Save(context.Background(), user))

	device := &model.Device{UserID: user.ID, Platform: "ios", PhoneNumber: "+14155550101", VerificationCode: "4321"}
	require.NoError(t, fx.devices.Create(context.Background(), device))

	result, err := fx.service.VerifyForReset(context.Background(), "+14155550101", "4321", device.ID, "")
	require.NoError(t, err)

	assert.False(t, result.User.IsTemporary)
	// the returned projection is decrypted
	assert.Equal(t, "mariah@flips.test", result.User.Username)
	assert.Equal(t, "+14155550101", result.User.PhoneNumber)

	stored, err := fx.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsTemporary)

	storedDevice, err := fx.devices.FindByID(context.Background(), device.ID)
	require.NoError(t, err)
	assert.True(t, storedDevice.IsVerified)
	assert.Equal(t, 0, storedDevice.RetryCount)
}

func TestVerifyForResetBoundPhoneIsFirstWriteWins(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	device := &model.Device{UserID: user.ID, PhoneNumber: "+14155550101", VerificationCode: "4321"}
	require.NoError(t, fx.devices.Create(context.Background(), device))

	_, err := fx.service.VerifyForReset(context.Background(), "+14155550101", "4321", device.ID, "+19998887777")
	require.NoError(t, err)

	stored, err := fx.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	// already-bound number is not overwritten
	assert.Equal(t, user.PhoneNumber, stored.PhoneNumber)
}

func TestVerifyForResetWrongCodeRunsStateMachine(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	device := &model.Device{UserID: user.ID, PhoneNumber: "+14155550101", VerificationCode: "4321"}
	require.NoError(t, fx.devices.Create(context.Background(), device))

	_, err := fx.service.VerifyForReset(context.Background(), "+14155550101", "0000", device.ID, "")
	assert.ErrorIs(t, err, verification.ErrWrongCode)

	stored, err := fx.devices.FindByID(context.Background(), device.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RetryCount)
	assert.False(t, stored.IsVerified)
}

func TestUpdatePasswordHappyPath(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	device := &model.Device{UserID: user.ID, VerificationCode: "4321"}
	require.NoError(t, fx.devices.Create(context.Background(), device))
	passport := &model.Passport{UserID: user.ID, Protocol: model.ProtocolLocal}
	require.NoError(t, passport.SetPassword("OldPass1"))
	require.NoError(t, fx.passports.Create(context.Background(), passport))

	err := fx.service.UpdatePassword(context.Background(), "mariah@flips.test", "+14155550101", "4321", device.ID, "Password1")
	require.NoError(t, err)

	stored, err := fx.passports.FindByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.ValidatePassword("Password1"))
}

func TestUpdatePasswordWrongCodeRotatesSilently(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	device := &model.Device{UserID: user.ID, VerificationCode: "4321", RetryCount: 1}
	require.NoError(t, fx.devices.Create(context.Background(), device))

	err := fx.service.UpdatePassword(context.Background(), "mariah@flips.test", "+14155550101", "0000", device.ID, "Password1")
	assert.ErrorIs(t, err, verification.ErrWrongCode)

	stored, err := fx.devices.FindByID(context.Background(), device.ID)
	require.NoError(t, err)
	// code rotated, retry counter untouched, nothing dispatched
	assert.NotEqual(t, "4321", stored.VerificationCode)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Empty(t, fx.sender.sent)
}

func TestUpdatePasswordPolicy(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	device := &model.Device{UserID: user.ID, VerificationCode: "4321"}
	require.NoError(t, fx.devices.Create(context.Background(), device))
	passport := &model.Passport{UserID: user.ID, Protocol: model.ProtocolLocal}
	require.NoError(t, fx.passports.Create(context.Background(), passport))

	for _, rejected := range []string{"password1", "PASSWORD1", "PasswordA", "PaS1"} {
		err := fx.service.UpdatePassword(context.Background(), "mariah@flips.test", "+14155550101", "4321", device.ID, rejected)
		assert.True(t, apperror.IsType(err, apperror.PolicyError), "expected %q to be rejected", rejected)
	}

	err := fx.service.UpdatePassword(context.Background(), "mariah@flips.test", "+14155550101", "4321", device.ID, "Password1")
	assert.NoError(t, err)
}

func TestUpdatePasswordZeroRows(t *testing.T) {
	fx := newFixture(t)
	user := fx.seedUser(t, "+14155550101", "mariah@flips.test", "")
	device := &model.Device{UserID: user.ID, VerificationCode: "4321"}
	require.NoError(t, fx.devices.Create(context.Background(), device))
	// no passport seeded: the update affects zero rows

	err := fx.service.UpdatePassword(context.Background(), "mariah@flips.test", "+14155550101", "4321", device.ID, "Password1")
	require.Error(t, err)
	assert.True(t, apperror.IsType(err, apperror.StorageError))
	assert.Contains(t, err.Error(), "no rows affected")
}

func TestSignupCreatesUserAndPassport(t *testing.T) {
	fx := newFixture(t)

	user, err := fx.service.Signup(context.Background(), SignupInput{
		Username:  "mariah@flips.test",
		Password:  "Password1",
		FirstName: "Mariah",
		LastName:  "Stone",
		Birthday:  time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// the returned projection is decrypted, the stored record is not
	assert.Equal(t, "mariah@flips.test", user.Username)
	stored := fx.users.users[user.ID]
	assert.NotEqual(t, "mariah@flips.test", stored.Username)

	passport, err := fx.passports.FindByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, passport.ValidatePassword("Password1"))
}

func TestSignupUnderage(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.Signup(context.Background(), SignupInput{
		Username: "kid@flips.test",
		Password: "Password1",
		Birthday: time.Now().AddDate(-12, 0, 0),
	})
	assert.True(t, apperror.IsType(err, apperror.PolicyError))
}

func TestSignupRollsBackUserOnPassportFailure(t *testing.T) {
	fx := newFixture(t)
	fx.passports.createErr = apperror.NewStorageError("error creating passport", nil)

	_, err := fx.service.Signup(context.Background(), SignupInput{
		Username: "mariah@flips.test",
		Password: "Password1",
		Birthday: time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Empty(t, fx.users.users)
}

func TestLogin(t *testing.T) {
	fx := newFixture(t)
	user, err := fx.service.Signup(context.Background(), SignupInput{
		Username: "mariah@flips.test",
		Password: "Password1",
		Birthday: time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	loggedIn, token, err := fx.service.Login(context.Background(), "mariah@flips.test", "Password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, token)

	_, _, err = fx.service.Login(context.Background(), "mariah@flips.test", "WrongPass1")
	assert.True(t, apperror.IsType(err, apperror.AuthError))

	_, _, err = fx.service.Login(context.Background(), "nobody@flips.test", "Password1")
	assert.True(t, apperror.IsType(err, apperror.AuthError))
}
