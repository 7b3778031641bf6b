// Package verification owns a device's verification lifecycle: code
// generation, submission, the retry budget and the lockout-triggered
// regeneration. The device row is the sole authority for verification
// status; callers re-fetch instead of caching it.
package verification

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/model"
	"github.com/flipsapp/flips-backend/internal/sms"
	"github.com/flipsapp/flips-backend/prometheus"

	"go.uber.org/zap"
)

// MaxRetryCount is the number of wrong submissions tolerated before a
// fresh code is forced. The third wrong attempt crosses the budget.
const MaxRetryCount = 2

var (
	// ErrWrongCode is returned for a wrong submission within the retry budget
	ErrWrongCode = apperror.NewValidationError("wrong verification code")
	// ErrTooManyAttempts is returned once the retry budget is exceeded; a
	// fresh code has already been issued and dispatched when callers see it
	ErrTooManyAttempts = apperror.NewValidationError("too many attempts, check your messages for a new code")
)

// Reasons a code gets issued, used as metric labels
const (
	ReasonCreate   = "create"
	ReasonResend   = "resend"
	ReasonLockout  = "lockout"
	ReasonRotation = "rotation"
)

// DeviceStore is the persistence the verifier needs
type DeviceStore interface {
	Save(ctx context.Context, device *model.Device) error
}

// PhoneDecrypter resolves the SMS destination when the device itself has
// no phone number bound and the owning user's number is stored encrypted
type PhoneDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Verifier runs the device verification state machine
type Verifier struct {
	devices  DeviceStore
	sender   sms.Sender
	crypto   PhoneDecrypter
	template string
	log      *zap.Logger
}

// NewVerifier wires the state machine to its collaborators
func NewVerifier(devices DeviceStore, sender sms.Sender, crypto PhoneDecrypter, template string, log *zap.Logger) *Verifier {
	return &Verifier{
		devices:  devices,
		sender:   sender,
		crypto:   crypto,
		template: template,
		log:      log,
	}
}

// GenerateCode returns a uniformly distributed 4-digit code in [1000, 9999]
func GenerateCode() string {
	return strconv.Itoa(rand.Intn(9000) + 1000)
}

// IssueCode overwrites the device's stored code, resets the retry count
// and dispatches the new code. The overwrite is persisted before dispatch
// is attempted, so a resend supersedes the prior code regardless of
// delivery outcome.
func (v *Verifier) IssueCode(ctx context.Context, device *model.Device, reason string) error {
	device.VerificationCode = GenerateCode()
	device.RetryCount = 0

	if err := v.devices.Save(ctx, device); err != nil {
		return err
	}
	prometheus.CodeIssuedCounter.WithLabelValues(reason).Inc()

	v.dispatch(ctx, device)
	return nil
}

// Resend re-issues the device's code. Always permitted; there is no
// retry cap on explicit resends.
func (v *Verifier) Resend(ctx context.Context, device *model.Device) error {
	return v.IssueCode(ctx, device, ReasonResend)
}

// SubmitCode evaluates a submitted code against the device. A match is
// the only way a device becomes verified. A mismatch bumps the retry
// count; crossing MaxRetryCount forces a fresh code out before the
// distinct lockout error is returned.
func (v *Verifier) SubmitCode(ctx context.Context, device *model.Device, submitted string) error {
	if device.VerificationCode != "" && submitted == device.VerificationCode {
		device.IsVerified = true
		device.RetryCount = 0
		if err := v.devices.Save(ctx, device); err != nil {
			return err
		}
		prometheus.VerificationAttemptCounter.WithLabelValues("verified").Inc()
		return nil
	}

	device.RetryCount++
	device.IsVerified = false

	if device.RetryCount > MaxRetryCount {
		// IssueCode persists the reset counter along with the new code
		if err := v.IssueCode(ctx, device, ReasonLockout); err != nil {
			return err
		}
		prometheus.VerificationAttemptCounter.WithLabelValues("locked").Inc()
		return ErrTooManyAttempts
	}

	if err := v.devices.Save(ctx, device); err != nil {
		return err
	}
	prometheus.VerificationAttemptCounter.WithLabelValues("wrong_code").Inc()
	return ErrWrongCode
}

// VerifyCodeOrRotate checks a submitted code without running the retry
// state machine. A mismatch silently rotates the stored code instead of
// counting against the retry budget; a probable brute-force attempt
// should not learn how close it is to a lockout.
func (v *Verifier) VerifyCodeOrRotate(ctx context.Context, device *model.Device, submitted string) error {
	if device.VerificationCode != "" && submitted == device.VerificationCode {
		return nil
	}
	if err := v.RotateCode(ctx, device); err != nil {
		return err
	}
	return ErrWrongCode
}

// RotateCode silently replaces the stored code without touching the
// retry count and without dispatching anything. Used by the password
// flow, where a wrong code is treated as a probable brute-force attempt.
func (v *Verifier) RotateCode(ctx context.Context, device *model.Device) error {
	device.VerificationCode = GenerateCode()
	if err := v.devices.Save(ctx, device); err != nil {
		return err
	}
	prometheus.CodeIssuedCounter.WithLabelValues(ReasonRotation).Inc()
	return nil
}

// dispatch sends the current code to the device's phone number, falling
// back to the owning user's decrypted number. Fire-and-forget: the
// outcome is logged and counted, never returned.
func (v *Verifier) dispatch(ctx context.Context, device *model.Device) {
	destination := device.PhoneNumber
	if destination == "" && device.User.PhoneNumber != "" {
		decrypted, err := v.crypto.Decrypt(device.User.PhoneNumber)
		if err != nil {
			v.log.Error("Failed to decrypt destination phone number",
				zap.Uint("device_id", device.ID), zap.Error(err))
		} else {
			destination = decrypted
		}
	}

	if destination == "" {
		v.log.Warn("No destination phone number for verification code",
			zap.Uint("device_id", device.ID))
		prometheus.SMSDispatchCounter.WithLabelValues("skipped").Inc()
		return
	}

	message := fmt.Sprintf(v.template, device.VerificationCode)
	if err := v.sender.SendSMS(ctx, destination, message); err != nil {
		v.log.Error("Failed to dispatch verification code",
			zap.Uint("device_id", device.ID), zap.Error(err))
		prometheus.SMSDispatchCounter.WithLabelValues("failed").Inc()
		return
	}

	prometheus.SMSDispatchCounter.WithLabelValues("sent").Inc()
	v.log.Info("Verification code dispatched", zap.Uint("device_id", device.ID))
}
