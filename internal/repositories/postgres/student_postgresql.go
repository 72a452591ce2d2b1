package postgres

import (
	"context"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"gorm.io/gorm"
)

type StudentPostgreSQL struct {
	db *gorm.DB
}

func NewStudentPostgreSQL(db *gorm.DB) repositories.StudentRepository {
	return &StudentPostgreSQL{db: db}
}

func (s *StudentPostgreSQL) Create(ctx context.Context, student *models.Student) error {
	return s.db.WithContext(ctx).Create(student).Error
}

func (s *StudentPostgreSQL) GetByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	err := s.db.WithContext(ctx).
		Preload("User").
		First(&student, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentPostgreSQL) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	var student models.Student
	err := s.db.WithContext(ctx).
		First(&student, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentPostgreSQL) Update(ctx context.Context, student *models.Student) error {
	return s.db.WithContext(ctx).Save(student).Error
}
