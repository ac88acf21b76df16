package repository

import (
	"context"
	"errors"

	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"gorm.io/gorm"
)

type DepartmentRepository struct {
	DB *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{DB: db}
}

func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*model.Department, error) {
	var dept model.Department
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&dept).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &dept, nil
}

func (r *DepartmentRepository) FindByName(ctx context.Context, name model.DepartmentName) (*model.Department, error) {
	var dept model.Department
	err := r.DB.WithContext(ctx).Where("name = ?", name).First(&dept).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &dept, nil
}

func (r *DepartmentRepository) List(ctx context.Context) ([]model.Department, error) {
	var departments []model.Department
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&departments).Error
	return departments, err
}
