package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/portalshot/driver"
	"github.com/use-agent/portalshot/models"
)

// Credentials are the portal login. They are read once at startup and never
// re-derived mid-flow.
type Credentials struct {
	UserID   string
	Password string
}

// LogValue keeps the password out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("userid", c.UserID),
		slog.Bool("password_set", c.Password != ""),
	)
}

// LoginForm holds the selectors of the login challenge.
type LoginForm struct {
	Form   string // the form container
	Inputs string // candidate fields, relative to Form
	Submit string // the submit control, page-wide
}

// DefaultLoginForm matches the portal login page. The ids start with a
// digit, which CSS id selectors cannot express.
var DefaultLoginForm = LoginForm{
	Form:   "[id='3loginform']",
	Inputs: "input",
	Submit: "[id='3loginform-login-submit']",
}

// FieldRole is what a login input is for, decided by its name attribute.
type FieldRole int

const (
	RoleUnknown FieldRole = iota
	RoleUserID
	RolePassword
	RoleRemember
)

func (r FieldRole) String() string {
	switch r {
	case RoleUserID:
		return "userid"
	case RolePassword:
		return "password"
	case RoleRemember:
		return "remember"
	default:
		return "unknown"
	}
}

var fieldRoles = map[string]FieldRole{
	"login-userid":   RoleUserID,
	"login-password": RolePassword,
	"remember":       RoleRemember,
}

// ClassifyField maps an input name to its role. Matching is exact.
func ClassifyField(name string) FieldRole {
	if r, ok := fieldRoles[name]; ok {
		return r
	}
	return RoleUnknown
}

// Assignment is one planned credential injection.
type Assignment struct {
	Field driver.ElementRef
	Role  FieldRole
	Value string
}

// Authenticator fills and submits the login challenge.
type Authenticator struct {
	drv           driver.Driver
	creds         Credentials
	form          LoginForm
	waiter        *ReadinessWaiter
	submitTimeout time.Duration
	logger        *slog.Logger
}

// NewAuthenticator returns an Authenticator bound to drv. A nil logger uses
// slog.Default.
func NewAuthenticator(drv driver.Driver, creds Credentials, form LoginForm, submitTimeout time.Duration, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if submitTimeout <= 0 {
		submitTimeout = 10 * time.Second
	}
	return &Authenticator{
		drv:           drv,
		creds:         creds,
		form:          form,
		waiter:        NewReadinessWaiter(drv, Readiness{}),
		submitTimeout: submitTimeout,
		logger:        logger,
	}
}

func authError(msg string, err error) *models.SessionError {
	return models.NewSessionError(models.ErrCodeAuth, msg, err)
}

// Plan classifies the inputs inside form and returns the injections to make,
// in document order. Inputs without a recognised name are left alone.
func (a *Authenticator) Plan(ctx context.Context, form driver.ElementRef) ([]Assignment, error) {
	inputs, err := a.drv.QueryAll(ctx, form, a.form.Inputs)
	if err != nil {
		return nil, authError("list login inputs", err)
	}

	var plan []Assignment
	for _, in := range inputs {
		name, ok, err := a.drv.Attribute(ctx, in, "name")
		if err != nil {
			return nil, authError("read input name", err)
		}
		role := RoleUnknown
		if ok {
			role = ClassifyField(name)
		}
		a.logger.Debug("login field", "field", in.Describe(), "name", name, "role", role.String())

		switch role {
		case RoleUserID:
			plan = append(plan, Assignment{Field: in, Role: role, Value: a.creds.UserID})
		case RolePassword:
			plan = append(plan, Assignment{Field: in, Role: role, Value: a.creds.Password})
		}
	}
	return plan, nil
}

// Resolve injects the credentials, waits for the submit control to enable,
// and clicks it once. Every failure is an AUTH_ERROR.
func (a *Authenticator) Resolve(ctx context.Context) error {
	if a.creds.UserID == "" || a.creds.Password == "" {
		return authError("credentials not configured", nil)
	}

	form, err := a.drv.QueryFirst(ctx, a.form.Form)
	if err != nil {
		return authError("login form not found", err)
	}
	plan, err := a.Plan(ctx, form)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		a.logger.Warn("login form has no recognised fields", "form", a.form.Form)
	}

	for _, as := range plan {
		if err := a.drv.SendKeys(ctx, as.Field, as.Value); err != nil {
			return authError(fmt.Sprintf("fill %s field", as.Role), err)
		}
	}

	submit, err := a.drv.QueryFirst(ctx, a.form.Submit)
	if err != nil {
		return authError("submit control not found", err)
	}
	if err := a.waiter.WaitEnabled(ctx, submit, a.submitTimeout); err != nil {
		return authError("submit control never enabled", err)
	}
	if err := a.drv.Click(ctx, submit); err != nil {
		return authError("submit login", err)
	}
	a.logger.Info("login submitted", "credentials", a.creds)
	return nil
}
