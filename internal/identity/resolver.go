package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
)

// IdentityResolutionError - не удалось ни найти, ни создать пользователя.
// Мутация при этом продолжается без исполнителя.
type IdentityResolutionError struct {
	Name string
	Err  error
}

func (e *IdentityResolutionError) Error() string {
	return fmt.Sprintf("не удалось определить пользователя %q: %v", e.Name, e.Err)
}

func (e *IdentityResolutionError) Unwrap() error {
	return e.Err
}

// Cache - кэш имя -> id перед хранилищем. Промах возвращает ("", false, nil).
type Cache interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, id string) error
}

type Resolver struct {
	repo  repository.IdentityRepository
	cache Cache
}

type ResolverOption func(*Resolver)

func WithCache(cache Cache) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
	}
}

func NewResolver(repo repository.IdentityRepository, options ...ResolverOption) *Resolver {
	r := &Resolver{repo: repo}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Normalize - единое правило сравнения имен: обрезка пробелов, регистр учитывается.
func Normalize(name string) string {
	return strings.TrimSpace(name)
}

// Resolve возвращает id пользователя по имени, создавая его при первом использовании.
// Гонка двух создателей разрешается уникальностью в хранилище и повторным поиском.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	name = Normalize(name)
	if name == "" {
		return "", &IdentityResolutionError{Name: name, Err: errors.New("пустое имя")}
	}

	if id, ok := r.fromCache(ctx, name); ok {
		return id, nil
	}

	id, err := r.repo.FindByName(ctx, name)
	if err == nil {
		r.toCache(ctx, name, id)
		return id, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Identity: Ошибка поиска пользователя", zap.String("name", name), zap.Error(err))
	}

	id, err = r.repo.InsertIdentity(ctx, name)
	if err == nil {
		logger.Info("Identity: Создан пользователь", zap.String("name", name), zap.String("id", id))
		r.toCache(ctx, name, id)
		return id, nil
	}
	if errors.Is(err, repository.ErrConflict) {
		logger.Debug("Identity: Пользователь уже создан параллельно", zap.String("name", name))
	} else {
		logger.Warn("Identity: Ошибка создания пользователя", zap.String("name", name), zap.Error(err))
	}

	id, lookupErr := r.repo.FindByName(ctx, name)
	if lookupErr != nil {
		logger.Error("Identity: Не удалось определить пользователя", lookupErr, zap.String("name", name))
		return "", &IdentityResolutionError{Name: name, Err: errors.Join(err, lookupErr)}
	}
	r.toCache(ctx, name, id)
	return id, nil
}

// List возвращает всех пользователей, отсортированных по имени.
func (r *Resolver) List(ctx context.Context) ([]task.Identity, error) {
	identities, err := r.repo.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("список пользователей: %w", err)
	}
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].Username < identities[j].Username
	})
	return identities, nil
}

func (r *Resolver) fromCache(ctx context.Context, name string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	id, ok, err := r.cache.Get(ctx, name)
	if err != nil {
		logger.Warn("Identity: Ошибка чтения кэша", zap.String("name", name), zap.Error(err))
		return "", false
	}
	return id, ok
}

func (r *Resolver) toCache(ctx context.Context, name, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, name, id); err != nil {
		logger.Warn("Identity: Ошибка записи в кэш", zap.String("name", name), zap.Error(err))
	}
}
