package student

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"classtrack/internal/apperr"
	"classtrack/internal/queue"
	"classtrack/internal/user"
)

// Service handles registration and lifecycle of students.
type Service struct {
	repo      *Repository
	users     *user.Repository
	jobs      queue.Queue
	framesDir string
	log       *zap.Logger
}

func NewService(repo *Repository, users *user.Repository, jobs queue.Queue, framesDir string, log *zap.Logger) *Service {
	return &Service{repo: repo, users: users, jobs: jobs, framesDir: framesDir, log: log}
}

// RegisterInput carries the self-registration form. VideoPath points at the
// already-saved upload.
type RegisterInput struct {
	Name            string
	RollNumber      string
	Email           string
	Password        string
	ConfirmPassword string
	VideoPath       string
}

// Register creates the student record and its login account, then queues a
// training job. Training runs in the worker; its failures never reach the
// registering user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Student, error) {
	if in.Name == "" || in.RollNumber == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return Student{}, apperr.Validation("all fields required")
	}
	if in.Password != in.ConfirmPassword {
		return Student{}, apperr.Validation("passwords do not match")
	}
	if len(in.Password) < 6 {
		return Student{}, apperr.Validation("password must be at least 6 characters")
	}
	if in.VideoPath == "" {
		return Student{}, apperr.Validation("video is required")
	}

	if existing, err := s.repo.GetByEmail(ctx, in.Email); err != nil {
		return Student{}, err
	} else if existing != nil {
		return Student{}, apperr.Validation("student with this email already registered")
	}
	if existing, err := s.repo.GetByRollNumber(ctx, in.RollNumber); err != nil {
		return Student{}, err
	} else if existing != nil {
		return Student{}, apperr.Validation("student with this roll number already exists")
	}
	if existing, err := s.users.FindByEmail(ctx, in.Email); err != nil {
		return Student{}, err
	} else if existing != nil {
		return Student{}, apperr.Validation("user account already exists")
	}

	st, err := s.repo.Insert(ctx, Student{
		Name:       in.Name,
		RollNumber: in.RollNumber,
		Email:      in.Email,
		VideoPath:  in.VideoPath,
	})
	if err != nil {
		return Student{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Student{}, err
	}
	if _, err := s.users.Create(ctx, user.User{
		Email:     in.Email,
		Role:      "student",
		Name:      in.Name,
		StudentID: &st.ID,
	}, string(hash)); err != nil {
		return Student{}, err
	}

	if err := s.jobs.Publish(ctx, queue.TrainJob{StudentID: st.ID, VideoPath: st.VideoPath}); err != nil {
		s.log.Warn("train job publish failed", zap.String("student", st.ID), zap.Error(err))
	}
	return st, nil
}

// ResetPassword resets the login password for a student's account.
func (s *Service) ResetPassword(ctx context.Context, studentID, newPassword string) error {
	if len(newPassword) < 6 {
		return apperr.Validation("password must be at least 6 characters")
	}
	st, err := s.repo.Get(ctx, studentID)
	if err != nil {
		return err
	}
	if st == nil {
		return apperr.NotFound("student not found")
	}
	account, err := s.users.FindByStudentID(ctx, studentID)
	if err != nil {
		return err
	}
	if account == nil {
		return apperr.NotFound("student user account not found")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, account.ID, string(hash))
}

// DeleteResult reports what a cascading delete removed.
type DeleteResult struct {
	AttendanceRemoved  int
	EnrollmentsRemoved int
}

// Delete removes a student, their dependent rows and their media files.
func (s *Service) Delete(ctx context.Context, studentID string) (DeleteResult, error) {
	st, err := s.repo.Get(ctx, studentID)
	if err != nil {
		return DeleteResult{}, err
	}
	if st == nil {
		return DeleteResult{}, apperr.NotFound("student not found")
	}

	attCount, enrCount, err := s.repo.RelatedCounts(ctx, studentID)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := s.repo.Delete(ctx, studentID); err != nil {
		return DeleteResult{}, err
	}

	if st.VideoPath != "" {
		if err := os.Remove(st.VideoPath); err != nil && !os.IsNotExist(err) {
			s.log.Warn("video cleanup failed", zap.String("path", st.VideoPath), zap.Error(err))
		}
	}
	framesDir := filepath.Join(s.framesDir, studentID)
	if err := os.RemoveAll(framesDir); err != nil {
		s.log.Warn("frames cleanup failed", zap.String("path", framesDir), zap.Error(err))
	}

	return DeleteResult{AttendanceRemoved: attCount, EnrollmentsRemoved: enrCount}, nil
}
