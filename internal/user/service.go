// Package user はユーザープロフィールとロール管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/coursehub/internal/model"
	"github.com/hitoshi/coursehub/internal/repository"
)

// ProgressDeleter は学生の進捗の一括削除インターフェース。
type ProgressDeleter interface {
	DeleteByStudentID(ctx context.Context, studentID int64) error
}

// EnrollmentDeleter は学生の受講登録の一括削除インターフェース。
type EnrollmentDeleter interface {
	DeleteByStudentID(ctx context.Context, studentID int64) error
}

// CourseCounter は担当コース数の取得インターフェース。
type CourseCounter interface {
	CountByInstructor(ctx context.Context, instructorID int64) (int, error)
}

// ProfileInput はプロフィール更新の入力。
type ProfileInput struct {
	FirstName string
	LastName  string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo       repository.UserRepository
	roleRepo       repository.RoleRepository
	courseCounter  CourseCounter
	enrollDeleter  EnrollmentDeleter
	progressDelete ProgressDeleter
	tx             repository.TxRunner
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	courseCounter CourseCounter,
	enrollDeleter EnrollmentDeleter,
	progressDelete ProgressDeleter,
	tx repository.TxRunner,
) *Service {
	return &Service{
		userRepo:       userRepo,
		roleRepo:       roleRepo,
		courseCounter:  courseCounter,
		enrollDeleter:  enrollDeleter,
		progressDelete: progressDelete,
		tx:             tx,
		now:            time.Now,
	}
}

// Me は認証主体に対応するユーザーを返す。
func (s *Service) Me(ctx context.Context, p model.Principal) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, p.Subject)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(p.Subject)
	}
	return user, nil
}

// UpdateProfile は氏名を更新する。
func (s *Service) UpdateProfile(ctx context.Context, p model.Principal, in ProfileInput) (*model.User, error) {
	user, err := s.Me(ctx, p)
	if err != nil {
		return nil, err
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.UpdatedAt = s.now()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 担当コースを持つユーザーは退会できない。
// 削除順序: progress → enrollments → user_roles → user（1トランザクション）
func (s *Service) Withdraw(ctx context.Context, p model.Principal) error {
	user, err := s.Me(ctx, p)
	if err != nil {
		return err
	}

	owned, err := s.courseCounter.CountByInstructor(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("担当コース数の取得に失敗しました: %w", err)
	}
	if owned > 0 {
		return model.NewUserOwnsCoursesError()
	}

	slog.Info("退会処理を開始します",
		slog.Int64("user_id", user.ID),
	)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		// 1. 進捗を削除
		if err := s.progressDelete.DeleteByStudentID(ctx, user.ID); err != nil {
			return fmt.Errorf("進捗の削除に失敗しました: %w", err)
		}

		// 2. 受講登録を削除
		if err := s.enrollDeleter.DeleteByStudentID(ctx, user.ID); err != nil {
			return fmt.Errorf("受講登録の削除に失敗しました: %w", err)
		}

		// 3. ロールの紐付けを削除
		if err := s.userRepo.RemoveRoles(ctx, user.ID); err != nil {
			return fmt.Errorf("ロールの削除に失敗しました: %w", err)
		}

		// 4. ユーザーを削除
		if err := s.userRepo.Delete(ctx, user.ID); err != nil {
			return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("退会処理が完了しました",
		slog.Int64("user_id", user.ID),
	)
	return nil
}

// GrantRole は既存のロールをユーザーに付与する。付与済みの場合は何もしない。
func (s *Service) GrantRole(ctx context.Context, userID int64, roleName string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(strconv.FormatInt(userID, 10))
	}

	role, err := s.roleRepo.FindByName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("ロールの取得に失敗しました: %w", err)
	}
	if role == nil {
		return nil, model.NewRoleNotFoundError(roleName)
	}

	if user.HasRole(role.Name) {
		return user, nil
	}

	if err := s.userRepo.AddRole(ctx, user.ID, role.ID); err != nil {
		return nil, fmt.Errorf("ロールの付与に失敗しました: %w", err)
	}
	user.Roles = append(user.Roles, role.Name)

	slog.Info("ロールを付与しました",
		slog.Int64("user_id", user.ID),
		slog.String("role", role.Name),
	)
	return user, nil
}
