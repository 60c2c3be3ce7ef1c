package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
)

// DirectoryRepositoryInterface - чтение клиентов и сотрудников. Их CRUD ведётся снаружи.
type DirectoryRepositoryInterface interface {
	FindClient(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Client, error)
	FindUser(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error)
}

type directoryRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewDirectoryRepository(storage *pgxpool.Pool, logger *zap.Logger) DirectoryRepositoryInterface {
	return &directoryRepository{storage: storage, logger: logger}
}

func (r *directoryRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *directoryRepository) FindClient(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Client, error) {
	query, args, err := psql.Select("id, name, email, phone, is_active, created_at, updated_at").
		From("clients").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL FindClient: %w", err)
	}

	var c entities.Client
	err = r.getQuerier(tx).QueryRow(ctx, query, args...).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования clients: %w", err)
	}
	return &c, nil
}

func (r *directoryRepository) FindUser(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error) {
	query, args, err := psql.Select("id, fio, email, is_active, created_at, updated_at").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL FindUser: %w", err)
	}

	var u entities.User
	err = r.getQuerier(tx).QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Fio, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования users: %w", err)
	}
	return &u, nil
}
