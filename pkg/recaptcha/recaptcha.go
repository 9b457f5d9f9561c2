// Package recaptcha verifies Google reCAPTCHA responses posted with forms.
package recaptcha

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/farmshop/storefront/config"
	shophttp "github.com/farmshop/storefront/pkg/http"
)

// FormField is the field the reCAPTCHA widget adds to a form.
const FormField = "g-recaptcha-response"

const verifyURL = "https://www.google.com/recaptcha/api/siteverify"

var ErrFailed = errors.New("recaptcha: verification failed")

type Verifier struct {
	secret   string
	endpoint string
}

func New(secret string) *Verifier {
	return &Verifier{secret: secret, endpoint: verifyURL}
}

// FromConfig uses REC_PRIVATE. An empty key disables verification.
func FromConfig() *Verifier { return New(config.RecaptchaPrivate()) }

func (v *Verifier) Enabled() bool { return v.secret != "" }

// Verify checks response with Google. Disabled verifiers accept everything.
func (v *Verifier) Verify(ctx context.Context, response, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if response == "" {
		return ErrFailed
	}

	form := url.Values{"secret": {v.secret}, "response": {response}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	resp, err := shophttp.Post(v.endpoint).
		Form(form).
		Timeout(5 * time.Second).
		WithContext(ctx).
		Send()
	if err != nil {
		return fmt.Errorf("recaptcha: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return fmt.Errorf("recaptcha: %w", err)
	}

	var out struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := resp.JSON(&out); err != nil {
		return fmt.Errorf("recaptcha: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("%w: %v", ErrFailed, out.ErrorCodes)
	}
	return nil
}
