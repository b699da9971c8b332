package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"sprayDispatch/models"
)

// CountryPrefix is prepended to the national number to form the session phone.
const CountryPrefix = "+91"

var (
	ErrInvalidPhone = fmt.Errorf("%w: phone must be 10 digits", models.ErrValidation)
	ErrOTPNotIssued = fmt.Errorf("%w: no code was requested for this phone", models.ErrValidation)
	ErrOTPExpired   = fmt.Errorf("%w: code expired", models.ErrValidation)
	ErrOTPMismatch  = fmt.Errorf("%w: code does not match", models.ErrValidation)
	ErrOTPLocked    = fmt.Errorf("%w: too many attempts", models.ErrValidation)
)

var phoneValidator = validator.New()

// NormalizePhone strips spaces and dashes and checks for a 10-digit number.
func NormalizePhone(phone string) (string, error) {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	if err := phoneValidator.Var(digits, "required,len=10,numeric"); err != nil {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// SessionPhone is the display form stored on the operator profile.
func SessionPhone(national string) string {
	return CountryPrefix + " " + national
}

type otpEntry struct {
	hash     []byte
	expires  time.Time
	attempts int
}

// OTPIssuer hands out one-time login codes. Codes are kept only as bcrypt
// hashes; a new request for the same phone replaces the previous code.
type OTPIssuer struct {
	mu          sync.Mutex
	entries     map[string]*otpEntry
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	generate    func() (string, error)
}

// OTPOption configures an OTPIssuer.
type OTPOption func(*OTPIssuer)

// WithOTPClock overrides time.Now.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(o *OTPIssuer) { o.now = now }
}

// WithOTPGenerator overrides the random code source.
func WithOTPGenerator(gen func() (string, error)) OTPOption {
	return func(o *OTPIssuer) { o.generate = gen }
}

// NewOTPIssuer creates an issuer whose codes live for ttl and allow
// maxAttempts verifications.
func NewOTPIssuer(ttl time.Duration, maxAttempts int, opts ...OTPOption) *OTPIssuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	o := &OTPIssuer{
		entries:     map[string]*otpEntry{},
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
		generate:    randomCode,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Issue creates a fresh code for phone and returns it with its expiry.
func (o *OTPIssuer) Issue(phone string) (string, time.Time, error) {
	national, err := NormalizePhone(phone)
	if err != nil {
		return "", time.Time{}, err
	}
	code, err := o.generate()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("hash code: %w", err)
	}
	exp := o.now().Add(o.ttl)
	o.mu.Lock()
	o.entries[national] = &otpEntry{hash: hash, expires: exp}
	o.mu.Unlock()
	return code, exp, nil
}

// Verify checks code for phone. A matching code is consumed; it returns
// the normalized national number.
func (o *OTPIssuer) Verify(phone, code string) (string, error) {
	national, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[national]
	if !ok {
		return "", ErrOTPNotIssued
	}
	if o.now().After(e.expires) {
		delete(o.entries, national)
		return "", ErrOTPExpired
	}
	if e.attempts >= o.maxAttempts {
		delete(o.entries, national)
		return "", ErrOTPLocked
	}
	e.attempts++
	if bcrypt.CompareHashAndPassword(e.hash, []byte(strings.TrimSpace(code))) != nil {
		return "", ErrOTPMismatch
	}
	delete(o.entries, national)
	return national, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
