package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	chat "github.com/goliatone/go-chat"
	"github.com/goliatone/go-chat/broker/memory"
	redisbroker "github.com/goliatone/go-chat/broker/redis"
	"github.com/goliatone/go-chat/cmd/chatd/config"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config *gconfig.Container[*config.BaseConfig]
	bunDB  *bun.DB
	auth   chat.Authenticator
	auther *chat.RouteAuthenticator
	repo   chat.RepositoryManager
	relay  *chat.Relay
	broker chat.Broker
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("chatd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithBroker(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithChatRoutes(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(app.Config().GetApp().GetAddress())

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.Config().GetPersistence().GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*chat.User)(nil))
	persistence.RegisterModel((*chat.ChatMessage)(nil))

	client, err := persistence.New(app.Config().GetPersistence(), db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	bunDB := client.DB()

	if _, err := bunDB.NewCreateTable().
		Model((*chat.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	if _, err := bunDB.NewCreateTable().
		Model((*chat.ChatMessage)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	app.bunDB = bunDB
	app.repo = chat.NewRepositoryManager(bunDB)

	return app.repo.Validate()
}

func WithBroker(ctx context.Context, app *App) error {
	relayCfg := app.Config().GetRelay()

	if addr := relayCfg.GetRedisAddr(); addr != "" {
		broker, _ := redisbroker.NewFromAddr(addr)
		app.broker = broker
		app.GetLogger("broker").Info("using redis broker", "addr", addr)
		return nil
	}

	app.broker = memory.New()
	app.GetLogger("broker").Info("using in-process broker")
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
			AppName:           app.Config().GetApp().GetName(),
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	app.srv = srv
	return nil
}

type userTrackerAdapter struct {
	users chat.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*chat.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *chat.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a userTrackerAdapter) TrackSucccessfulLogin(ctx context.Context, user *chat.User) error {
	return a.users.TrackSucccessfulLogin(ctx, user)
}

func WithChatRoutes(ctx context.Context, app *App) error {
	cfg := app.Config().GetAuth()

	userProvider := chat.NewUserProvider(userTrackerAdapter{users: app.repo.Users()})
	userProvider.WithLogger(app.GetLogger("auth:prv"))

	authenticator := chat.NewAuthenticator(userProvider, cfg)
	authenticator.WithLogger(app.GetLogger("auth:authn"))
	app.auth = authenticator

	httpAuth, err := chat.NewHTTPAuthenticator(authenticator, cfg)
	if err != nil {
		return err
	}

	httpAuth.WithLogger(app.GetLogger("auth:http"))
	httpAuth.WithUserResolver(func(ctx context.Context, identifier string) (*chat.User, error) {
		return app.repo.Users().GetByIdentifier(ctx, identifier)
	})
	app.auther = httpAuth

	// the authentication filter runs on every request and never rejects
	app.srv.Router().Use(httpAuth.WithAuthentication())

	registerer := chat.NewRegisterUserHandler(app.repo)

	chat.RegisterAuthRoutes(app.srv.Router().Group("/api/auth"),
		func(ac *chat.AuthController) *chat.AuthController {
			ac.Repo = app.repo
			ac.Registerer = registerer
			ac.Auther = httpAuth
			ac.Protected = httpAuth
			ac.Config = cfg
			ac.HistoryLimit = app.Config().GetRelay().GetHistoryLimit()
			ac.WithLogger(app.GetLogger("auth:ctrl"))
			return ac
		})

	relayOpts := []chat.RelayOption{
		chat.WithRelayTokenValidator(authenticator.TokenService()),
		chat.WithRelayLogger(app.GetLogger("relay")),
	}
	if topic := app.Config().GetRelay().GetTopic(); topic != "" {
		relayOpts = append(relayOpts, chat.WithRelayTopic(topic))
	}

	app.relay = chat.NewRelay(app.broker, app.repo.Messages(), relayOpts...)

	wsHandler := router.ChainWSMiddleware(
		router.NewWSRecover(),
		router.NewWSLogger(),
	)(chat.ChatSocketHandler(app.relay, app.GetLogger("ws")))

	app.srv.Router().Get("/ws", router.WebSocketHandler(wsHandler))

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
