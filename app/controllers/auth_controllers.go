package controllers

import (
	"errors"
	"net/http"

	"github.com/farmshop/storefront/app/services"
	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/middleware"
	"github.com/farmshop/storefront/pkg/recaptcha"
)

type AuthController struct {
	service      *services.AuthService
	recaptchaKey string
}

// NewAuthController takes the public reCAPTCHA site key; the widget is shown
// only when the service has a secret configured.
func NewAuthController(service *services.AuthService, recaptchaKey string) *AuthController {
	return &AuthController{service: service, recaptchaKey: recaptchaKey}
}

type credentialsForm struct {
	Email    string `form:"email" validate:"required,email,min=4,max=120"`
	Password string `form:"password" validate:"required,min=6,max=80"`
}

func (ac *AuthController) Register(c *ctx.Context) {
	data := map[string]any{}
	if ac.service.CaptchaEnabled() {
		data["RecaptchaKey"] = ac.recaptchaKey
	}
	if !c.IsPost() {
		c.Render(http.StatusOK, "register", data)
		return
	}

	var in credentialsForm
	errs, err := c.BindForm(&in)
	if err != nil {
		c.ErrorPage(http.StatusBadRequest)
		return
	}
	data["Email"] = in.Email
	if errs != nil {
		data["Errors"] = errs
		c.Render(http.StatusOK, "register", data)
		return
	}

	user, err := ac.service.Register(c.Context(), in.Email, in.Password, c.R.PostForm.Get(recaptcha.FormField), c.ClientIP())
	switch {
	case errors.Is(err, services.ErrAlreadyRegistered):
		c.Flash("You have already registered, please log in.")
		c.Render(http.StatusOK, "register", data)
	case errors.Is(err, services.ErrCaptcha):
		data["Errors"] = map[string]string{"captcha": "Please confirm that you are not a robot."}
		c.Render(http.StatusOK, "register", data)
	case err != nil:
		c.ServerError(err)
	default:
		ac.signIn(c, user.ID)
	}
}

func (ac *AuthController) Login(c *ctx.Context) {
	if !c.IsPost() {
		c.Render(http.StatusOK, "login", nil)
		return
	}

	var in credentialsForm
	errs, err := c.BindForm(&in)
	if err != nil {
		c.ErrorPage(http.StatusBadRequest)
		return
	}
	data := map[string]any{"Email": in.Email}
	if errs != nil {
		data["Errors"] = errs
		c.Render(http.StatusOK, "login", data)
		return
	}

	user, err := ac.service.Login(c.Context(), in.Email, in.Password)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.Flash("User does not exist, please register.")
		c.Render(http.StatusOK, "login", data)
	case errors.Is(err, services.ErrInvalidCredentials):
		c.Flash("Invalid credentials.")
		c.Render(http.StatusOK, "login", data)
	case err != nil:
		c.ServerError(err)
	default:
		ac.signIn(c, user.ID)
	}
}

// signIn rotates the session id before storing the user in it.
func (ac *AuthController) signIn(c *ctx.Context, userID uint) {
	sess := c.Session()
	sess.Regenerate()
	sess.Set(middleware.SessionUserKey, userID)
	c.Redirect(http.StatusFound, "/")
}

func (ac *AuthController) Logout(c *ctx.Context) {
	c.Session().Invalidate()
	c.Redirect(http.StatusFound, "/")
}
