package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"taskBoard/internal/auth"
	"taskBoard/internal/board"
	"taskBoard/internal/config"
	"taskBoard/internal/handlers"
	"taskBoard/internal/identity"
	"taskBoard/internal/identity/cache"
	"taskBoard/internal/live"
	"taskBoard/internal/logger"
	"taskBoard/internal/middleware"
	"taskBoard/internal/push"
	"taskBoard/internal/realtime"
	"taskBoard/internal/realtime/pgnotify"
	"taskBoard/internal/repository"
	"taskBoard/internal/repository/task/inmemory"
	"taskBoard/internal/repository/task/postgres"
	"taskBoard/internal/seed"
	"taskBoard/internal/service"
	"taskBoard/internal/worker"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// storage - хранилище задач и пользователей одного бэкенда.
type storage interface {
	repository.TaskRepository
	repository.IdentityRepository
}

type App struct {
	config       *config.Config
	server       *http.Server
	router       *chi.Mux
	repository   storage
	feed         realtime.Feed
	subscription realtime.Subscription
	store        *board.Store
	service      *service.TaskService
	merger       *live.Merger
	hub          *push.Hub
	worker       *worker.ResyncWorker
	cancel       context.CancelFunc
	shutdowns    []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development, a.config.Logging.Level); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})
	a.watchConfig()

	if err := a.initStorage(ctx); err != nil {
		return err
	}

	resolver := identity.NewResolver(a.repository, a.identityCache(ctx)...)

	a.store = board.NewStore()
	a.service = service.NewTaskService(a.repository, resolver, a.store,
		service.WithWriteTimeout(a.config.Engine.WriteTimeout))

	if err := a.syncBoard(ctx); err != nil {
		return err
	}

	a.merger = live.NewMerger(a.repository, a.store,
		live.WithTable(repository.TableTasks),
		live.WithResync(a.service.Load))
	a.hub = push.NewHub(a.store, push.WithAllowedOrigins(a.config.Server.CorsOrigins))
	interval := a.config.Worker.ResyncInterval
	a.worker = worker.NewResyncWorker(a.service, &interval)

	var verifier middleware.TokenVerifier
	if a.config.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(a.config.Auth.JWTSecret, a.config.Auth.Issuer)
	}

	a.router = NewRouter(handlers.NewTaskHandler(a.service), a.hub, verifier, a.config)
	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      otelhttp.NewHandler(a.router, "taskboard"),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	logger.Info("Приложение инициализировано",
		zap.String("repository", a.config.Repository.Type),
		zap.Int("tasks", a.store.Len()),
		zap.Bool("auth_jwt", verifier != nil))
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	switch a.config.Repository.Type {
	case "postgres":
		db, err := postgres.New(ctx, a.config.Database.URL, postgres.PoolOptions{
			MaxConns:    int32(a.config.Database.MaxConnections),
			MinConns:    int32(a.config.Database.MinConnections),
			IdleTimeout: a.config.Database.IdleTimeout,
		})
		if err != nil {
			return fmt.Errorf("подключение к postgres: %w", err)
		}
		a.repository = db
		a.feed = pgnotify.New(a.config.Database.URL, a.config.Database.NotifyChannel)
		a.shutdowns = append(a.shutdowns, db.Close)

	default:
		mem := inmemory.New()
		if path := a.config.Repository.SeedFile; path != "" {
			if err := seed.LoadFile(path, mem); err != nil {
				return fmt.Errorf("начальные данные: %w", err)
			}
		}
		a.repository = mem
		a.feed = mem
	}
	return nil
}

// syncBoard подписывается на ленту изменений и только потом загружает доску.
// Записи, сделанные во время загрузки, придут событиями, повторы merger пропустит.
func (a *App) syncBoard(ctx context.Context) error {
	// подписка живет до Shutdown, а не до конца Init
	feedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	sub, err := a.feed.Subscribe(feedCtx)
	if err != nil {
		return fmt.Errorf("подписка на изменения: %w", err)
	}
	a.subscription = sub

	if err := a.service.Load(ctx); err != nil {
		return fmt.Errorf("начальная загрузка доски: %w", err)
	}
	return nil
}

// identityCache подключает redis, если он настроен. Недоступный redis не мешает старту.
func (a *App) identityCache(ctx context.Context) []identity.ResolverOption {
	if a.config.Redis.Addr == "" {
		return nil
	}
	client, err := cache.Connect(ctx, a.config.Redis.Addr)
	if err != nil {
		logger.Warn("Redis недоступен, кэш пользователей отключен", zap.Error(err))
		return nil
	}
	a.shutdowns = append(a.shutdowns, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Ошибка закрытия redis", zap.Error(err))
		}
	})
	return []identity.ResolverOption{
		identity.WithCache(cache.NewRedis(client, cache.DefaultPrefix, a.config.Redis.TTL)),
	}
}

func (a *App) watchConfig() {
	a.config.Watch(func(next *config.Config) {
		if next.Logging.Level == a.config.Logging.Level {
			return
		}
		if err := logger.SetLevel(next.Logging.Level); err != nil {
			logger.Warn("Неверный уровень логирования в конфигурации", zap.Error(err))
			return
		}
		logger.Info("Уровень логирования изменен", zap.String("level", next.Logging.Level))
		a.config.Logging.Level = next.Logging.Level
	}, func(err error) {
		logger.Warn("Изменение конфигурации отклонено", zap.Error(err))
	})
}

// Handler - корневой обработчик HTTP со всеми middleware.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run запускает HTTP сервер, обработку уведомлений и фоновую сверку до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := a.merger.Run(gctx, a.subscription.Events())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		a.worker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("остановка сервера: %w", err)
		}
		logger.Info("Сервер остановлен")
		return nil
	})

	return g.Wait()
}

// Shutdown освобождает ресурсы в обратном порядке создания.
func (a *App) Shutdown() {
	if a.subscription != nil {
		if err := a.subscription.Close(); err != nil {
			logger.Warn("Ошибка закрытия ленты изменений", zap.Error(err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
}
