package services

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	apperrors "rental-system/pkg/errors"
)

type CategoryServiceInterface interface {
	CreateCategory(ctx context.Context, payload dto.CategoryDTO) (*entities.EquipmentCategory, error)
	UpdateCategory(ctx context.Context, id uint64, payload dto.CategoryDTO) (*entities.EquipmentCategory, error)
	DeleteCategory(ctx context.Context, id uint64) error
	FindCategory(ctx context.Context, id uint64) (*entities.EquipmentCategory, error)
	GetCategories(ctx context.Context) ([]*entities.EquipmentCategory, error)
}

type CategoryService struct {
	categoryRepo  repositories.CategoryRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	logger        *zap.Logger
}

func NewCategoryService(
	categoryRepo repositories.CategoryRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	logger *zap.Logger,
) CategoryServiceInterface {
	return &CategoryService{
		categoryRepo:  categoryRepo,
		equipmentRepo: equipmentRepo,
		txManager:     txManager,
		publisher:     publisher,
		logger:        logger,
	}
}

func (s *CategoryService) CreateCategory(ctx context.Context, payload dto.CategoryDTO) (*entities.EquipmentCategory, error) {
	category := entities.EquipmentCategory{Name: strings.TrimSpace(payload.Name), Description: payload.Description}

	var created *entities.EquipmentCategory
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		id, err := s.categoryRepo.Create(ctx, tx, category)
		if err != nil {
			return err
		}
		created, err = s.categoryRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionCreated, entityCategory, created.ID, map[string]interface{}{"name": created.Name})
	return created, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, id uint64, payload dto.CategoryDTO) (*entities.EquipmentCategory, error) {
	var updated *entities.EquipmentCategory
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		category, err := s.categoryRepo.FindByID(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "категория оборудования %d не найдена", id)
		}
		category.Name = strings.TrimSpace(payload.Name)
		category.Description = payload.Description

		if err := s.categoryRepo.Update(ctx, tx, *category); err != nil {
			return err
		}
		updated, err = s.categoryRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionUpdated, entityCategory, id, nil)
	return updated, nil
}

func (s *CategoryService) DeleteCategory(ctx context.Context, id uint64) error {
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		category, err := s.categoryRepo.FindByID(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "категория оборудования %d не найдена", id)
		}

		items, err := s.equipmentRepo.CountByCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if items > 0 {
			return apperrors.NewValidationError(
				"нельзя удалить категорию «%s»: в ней %d ед. оборудования", category.Name, items,
			).With("equipment_count", items)
		}
		return s.categoryRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.publisher.ActionLogged(ctx, actionDeleted, entityCategory, id, nil)
	return nil
}

func (s *CategoryService) FindCategory(ctx context.Context, id uint64) (*entities.EquipmentCategory, error) {
	category, err := s.categoryRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, wrapNotFound(err, "категория оборудования %d не найдена", id)
	}
	return category, nil
}

func (s *CategoryService) GetCategories(ctx context.Context) ([]*entities.EquipmentCategory, error) {
	return s.categoryRepo.GetAll(ctx)
}
