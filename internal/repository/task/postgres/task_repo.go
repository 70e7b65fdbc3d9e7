package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	repo "taskBoard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = 100 * time.Millisecond

const uniqueViolation = "23505"

type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	IdleTimeout time.Duration
}

type Storage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string, opts PoolOptions) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.IdleTimeout > 0 {
		config.MaxConnIdleTime = opts.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL",
		zap.Int32("max_conns", config.MaxConns),
		zap.Int32("min_conns", config.MinConns))
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

const selectTask = `SELECT
				t.id::text,
				t.title,
				t.description,
				t.subteam,
				t.priority,
				t.assignee_id::text,
				t.due_date,
				t.completed,
				t.archived,
				t.created_at,
				u.username
			FROM %s t
			LEFT JOIN users u ON u.id = t.assignee_id`

func (s *Storage) List(ctx context.Context) ([]repo.Record, error) {
	start := time.Now()
	defer observe("list", start)

	query := fmt.Sprintf(selectTask, "tasks") + ` ORDER BY t.created_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	records := []repo.Record{}
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return records, nil
}

func (s *Storage) Get(ctx context.Context, id string) (repo.Record, error) {
	start := time.Now()
	defer observe("get", start)

	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}

	query := fmt.Sprintf(selectTask, "tasks") + ` WHERE t.id = $1`
	rec, err := scanTask(s.pool.QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.String("task_id", id))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return rec, nil
}

func (s *Storage) Insert(ctx context.Context, values repo.WriteSet) (repo.Record, error) {
	start := time.Now()
	defer observe("insert", start)

	columns, args, err := toArgs(values)
	if err != nil {
		return nil, fmt.Errorf("добавление задачи: %w", err)
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := `WITH inserted AS (
				INSERT INTO tasks (` + strings.Join(columns, ", ") + `)
				VALUES (` + strings.Join(placeholders, ", ") + `)
				RETURNING *
			) ` + fmt.Sprintf(selectTask, "inserted")

	rec, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("добавление задачи: %w", err)
	}
	return rec, nil
}

func (s *Storage) Update(ctx context.Context, id string, values repo.WriteSet) (repo.Record, error) {
	start := time.Now()
	defer observe("update", start)

	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}
	if len(values) == 0 {
		return s.Get(ctx, id)
	}

	assignments, args, err := toAssignments(values)
	if err != nil {
		return nil, fmt.Errorf("обновление задачи: %w", err)
	}
	args = append(args, taskID)

	query := `WITH updated AS (
				UPDATE tasks SET ` + assignments + `
				WHERE id = $` + fmt.Sprint(len(args)) + `
				RETURNING *
			) ` + fmt.Sprintf(selectTask, "updated")

	rec, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось обновить задачу", err, zap.String("task_id", id))
		return nil, fmt.Errorf("обновление задачи: %w", err)
	}
	return rec, nil
}

func (s *Storage) UpdateMany(ctx context.Context, ids []string, values repo.WriteSet) error {
	start := time.Now()
	defer observe("update_many", start)

	if len(ids) == 0 || len(values) == 0 {
		return nil
	}

	taskIDs := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		taskIDs = append(taskIDs, parsed)
	}
	if len(taskIDs) == 0 {
		return nil
	}

	assignments, args, err := toAssignments(values)
	if err != nil {
		return fmt.Errorf("пакетное обновление: %w", err)
	}
	args = append(args, taskIDs)

	query := `UPDATE tasks SET ` + assignments + ` WHERE id = ANY($` + fmt.Sprint(len(args)) + `::uuid[])`
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось обновить задачи пакетом", err, zap.Int("count", len(taskIDs)))
		return fmt.Errorf("пакетное обновление: %w", err)
	}
	logger.Debug("Repository: Пакетное обновление", zap.Int64("rows", tag.RowsAffected()))
	return nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer observe("delete", start)

	taskID, err := uuid.Parse(id)
	if err != nil {
		return repo.ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		logger.Error("Repository: Не удалось удалить задачу", err, zap.String("task_id", id))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) FindByName(ctx context.Context, username string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id::text FROM users WHERE username = $1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repo.ErrNotFound
		}
		return "", fmt.Errorf("поиск пользователя: %w", err)
	}
	return id, nil
}

func (s *Storage) InsertIdentity(ctx context.Context, username string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `INSERT INTO users (username) VALUES ($1) RETURNING id::text`, username).Scan(&id)
	if err != nil {
		if isDuplicateKey(err) {
			return "", repo.ErrConflict
		}
		return "", fmt.Errorf("создание пользователя: %w", err)
	}
	return id, nil
}

func (s *Storage) ListIdentities(ctx context.Context) ([]task.Identity, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("получение пользователей: %w", err)
	}
	defer rows.Close()

	identities := []task.Identity{}
	for rows.Next() {
		var ident task.Identity
		if err := rows.Scan(&ident.ID, &ident.Username); err != nil {
			return nil, fmt.Errorf("сканирование пользователя: %w", err)
		}
		identities = append(identities, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return identities, nil
}

func scanTask(row pgx.Row) (repo.Record, error) {
	var (
		id, title, subteam, priority string
		description, assigneeID      *string
		username                     *string
		dueDate                      *time.Time
		completed, archived          bool
		createdAt                    time.Time
	)
	err := row.Scan(
		&id,
		&title,
		&description,
		&subteam,
		&priority,
		&assigneeID,
		&dueDate,
		&completed,
		&archived,
		&createdAt,
		&username,
	)
	if err != nil {
		return nil, err
	}

	rec := repo.Record{
		repo.ColumnID:          id,
		repo.ColumnTitle:       title,
		repo.ColumnDescription: description,
		repo.ColumnSubteam:     subteam,
		repo.ColumnPriority:    priority,
		repo.ColumnAssigneeID:  assigneeID,
		repo.ColumnDueDate:     dueDate,
		repo.ColumnCompleted:   completed,
		repo.ColumnArchived:    archived,
		repo.ColumnCreatedAt:   createdAt,
		repo.RelationUser:      nil,
	}
	if username != nil {
		rec[repo.RelationUser] = map[string]any{repo.FieldUsername: *username}
	}
	return rec, nil
}

// toArgs возвращает колонки в фиксированном порядке и значения в типах драйвера.
func toArgs(values repo.WriteSet) ([]string, []any, error) {
	var columns []string
	var args []any
	for _, column := range repo.WritableColumns {
		v, ok := values[column]
		if !ok {
			continue
		}
		converted, err := convert(column, v)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, column)
		args = append(args, converted)
	}
	for column := range values {
		if !repo.IsWritable(column) {
			return nil, nil, fmt.Errorf("колонка %q недоступна для записи", column)
		}
	}
	return columns, args, nil
}

func toAssignments(values repo.WriteSet) (string, []any, error) {
	columns, args, err := toArgs(values)
	if err != nil {
		return "", nil, err
	}
	parts := make([]string, len(columns))
	for i, column := range columns {
		parts[i] = fmt.Sprintf("%s = $%d", column, i+1)
	}
	return strings.Join(parts, ", "), args, nil
}

func convert(column string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch column {
	case repo.ColumnAssigneeID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: ожидалась строка, получено %T", column, v)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", column, err)
		}
		return id, nil
	case repo.ColumnDueDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: ожидалась строка, получено %T", column, v)
		}
		d, err := task.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", column, err)
		}
		return d.Time(), nil
	}
	return v, nil
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func observe(op string, start time.Time) {
	if elapsed := time.Since(start); elapsed > slowQuery {
		logger.Warn("Repository: Медленный запрос", zap.String("op", op), zap.Duration("ms", elapsed))
	}
}
