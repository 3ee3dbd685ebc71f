package chat

import (
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const DefaultHistoryLimit = 50

// RegisterAuthRoutes mounts the JSON auth and history endpoints.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Messages, controller.MessagesList).
		SetName("messages.get")

	protected := controller.Protected.ProtectedRoute(
		controller.Config,
		controller.Protected.MakeClientRouteAuthErrorHandler(false),
	)

	app.Get(controller.Routes.Me, controller.Me, protected).
		SetName("me.get")
}

type AuthControllerRoutes struct {
	Login    string
	Register string
	Messages string
	Me       string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Registerer   AccountRegistrerer
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	Protected    *RouteAuthenticator
	Config       Config
	HistoryLimit int
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		HistoryLimit: DefaultHistoryLimit,
		Routes: &AuthControllerRoutes{
			Login:    "/login",
			Register: "/register",
			Messages: "/messages",
			Me:       "/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Registerer == nil {
		panic("Missing AccountRegistrerer in auth controller...")
	}

	return c
}

func (a *AuthController) WithLogger(logger Logger) *AuthController {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerRegisterer(reg AccountRegistrerer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Registerer = reg
		return c
	}
}

func WithControllerAuther(auther *RouteAuthenticator, cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		c.Protected = auther
		c.Config = cfg
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// LoginResponse is the token envelope returned on success
type LoginResponse struct {
	Token       string `json:"token"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "unable to parse login payload")
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": err.Error(),
		})
	}

	if a.Debug {
		fmt.Println("======= CHAT LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	token, err := a.Auther.Login(ctx.Context(), payload)
	if err != nil {
		return a.loginError(ctx, err)
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), payload.GetIdentifier())
	if err != nil {
		a.Logger.Error("Login user lookup after verification failed", "error", err)
		return a.loginError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, LoginResponse{
		Token:       token,
		Identifier:  user.Email,
		DisplayName: user.Username,
	})
}

// loginError collapses credential failures into one response shape. Unknown
// accounts and bad passwords are indistinguishable to the caller.
func (a *AuthController) loginError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTooManyAttempts {
		return ctx.JSON(router.StatusTooManyRequests, map[string]any{
			"error":     ErrTooManyLoginAttempts.Message,
			"text_code": TextCodeTooManyAttempts,
		})
	}

	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"error":     ErrMismatchedHashAndPassword.Message,
		"text_code": TextCodeInvalidCreds,
	})
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.Required,
			validation.Length(2, 64),
		),
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 128),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "unable to parse registration payload")
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": err.Error(),
		})
	}

	user, err := a.Registerer.RegisterUser(ctx.Context(), payload.Email, payload.Username, payload.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			switch richErr.TextCode {
			case TextCodeUsernameTaken, TextCodeEmailTaken:
				return ctx.JSON(router.StatusBadRequest, map[string]any{
					"error":     richErr.Message,
					"text_code": richErr.TextCode,
				})
			}
		}

		a.Logger.Error("Registration failed", "error", err)
		return ctx.JSON(router.StatusInternalServerError, map[string]any{
			"error": "unable to register user",
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"id":       user.ID.String(),
		"username": user.Username,
		"email":    user.Email,
	})
}

// MessagesList returns the most recent persisted chat events.
func (a *AuthController) MessagesList(ctx router.Context) error {
	limit := a.HistoryLimit
	if raw := ctx.Query("limit", ""); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := a.Repo.Messages().Latest(ctx.Context(), limit)
	if err != nil {
		a.Logger.Error("Messages lookup failed", "error", err)
		return ctx.JSON(router.StatusInternalServerError, map[string]any{
			"error": "unable to load messages",
		})
	}

	return ctx.JSON(router.StatusOK, records)
}

// Me returns the authenticated principal. The route is mounted behind
// ProtectedRoute so an anonymous request never reaches it.
func (a *AuthController) Me(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey())
	if !ok {
		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"error":     ErrUnableToFindSession.Message,
			"text_code": ErrUnableToFindSession.TextCode,
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"id":       claims.UserID(),
		"email":    claims.Subject(),
		"username": claims.Username(),
	})
}

func (a *AuthController) contextKey() string {
	if a.Config != nil {
		return a.Config.GetContextKey()
	}
	return ""
}

func (a *AuthController) badRequest(ctx router.Context, msg string) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error":     msg,
		"text_code": TextCodeDataParseError,
	})
}

func defaultErrHandler(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = router.StatusInternalServerError
	}

	return ctx.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
