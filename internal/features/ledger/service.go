// Package ledger — service.go содержит бизнес-логику начисления и списания очков.
// Каждая операция — одна транзакция хранилища: решение и очки меняются вместе.
package ledger

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/platform"
)

// Service управляет очками и засчитанными решениями.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService создаёт сервис леджера.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Award засчитывает решение solver в теме и начисляет одно очко.
// Возвращает новый итог или common.ErrAlreadySolved, если решение уже засчитано.
func (s *Service) Award(ctx context.Context, solver platform.User, p AwardParams) (int, error) {
	if solver.ID == "" {
		return 0, wrap("award", solver, p.ThreadID, common.ErrUnknownUser)
	}
	var total int
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		active, err := tx.ActiveSolution(ctx, p.ThreadID, solver.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return common.ErrAlreadySolved
		}

		if err := tx.InsertSolution(ctx, &Solution{
			ThreadID:              p.ThreadID,
			SolverID:              solver.ID,
			SolvingCommentID:      p.SolvingCommentID,
			ConfirmationCommentID: p.ConfirmationCommentID,
			ConfirmerID:           p.Confirmer.ID,
			ByModerator:           p.ByModerator,
			CreatedAt:             s.now(),
		}); err != nil {
			return err
		}

		total, err = tx.AddPoints(ctx, solver, 1)
		return err
	})
	if err != nil {
		return 0, wrap("award", solver, p.ThreadID, err)
	}

	log.WithFields(log.Fields{
		"user_id":   solver.ID,
		"thread_id": p.ThreadID,
		"points":    total,
	}).Debug("Очко начислено")
	return total, nil
}

// Revoke отзывает активное решение и списывает очко (не ниже нуля).
// Возвращает новый итог или common.ErrNoActiveSolution.
func (s *Service) Revoke(ctx context.Context, solver platform.User, threadID, revokingCommentID string) (int, error) {
	if solver.ID == "" {
		return 0, wrap("revoke", solver, threadID, common.ErrUnknownUser)
	}
	var total int
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		active, err := tx.ActiveSolution(ctx, threadID, solver.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return common.ErrNoActiveSolution
		}

		if err := tx.MarkRevoked(ctx, active.ID, revokingCommentID, s.now()); err != nil {
			return err
		}

		total, err = tx.AddPoints(ctx, solver, -1)
		return err
	})
	if err != nil {
		return 0, wrap("revoke", solver, threadID, err)
	}

	log.WithFields(log.Fields{
		"user_id":   solver.ID,
		"thread_id": threadID,
		"points":    total,
	}).Debug("Очко списано")
	return total, nil
}

// CompensateAwardFailure отменяет Award, если ответ в тему не опубликовался:
// удаляет активное решение и возвращает очки к прежнему значению.
func (s *Service) CompensateAwardFailure(ctx context.Context, solver platform.User, threadID string) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		active, err := tx.ActiveSolution(ctx, threadID, solver.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return common.ErrNoActiveSolution
		}

		if err := tx.DeleteSolution(ctx, active.ID); err != nil {
			return err
		}

		total, err := tx.AddPoints(ctx, solver, -1)
		if err != nil {
			return err
		}
		if total == 0 {
			// Запись появилась вместе с этим решением — убираем и её
			return tx.DeleteEmptyUser(ctx, solver.ID)
		}
		return nil
	})
	if err != nil {
		return wrap("compensate award", solver, threadID, err)
	}
	return nil
}

// CompensateRevokeFailure отменяет Revoke: снимает отметку отзыва
// с последнего отозванного решения и возвращает очко.
func (s *Service) CompensateRevokeFailure(ctx context.Context, solver platform.User, threadID string) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		// Живое решение в теме — восстанавливать нечего
		active, err := tx.ActiveSolution(ctx, threadID, solver.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return common.ErrAlreadySolved
		}

		revoked, err := tx.LastRevoked(ctx, threadID, solver.ID)
		if err != nil {
			return err
		}
		if revoked == nil {
			return common.ErrNoRevokedSolution
		}

		if err := tx.ClearRevoked(ctx, revoked.ID); err != nil {
			return err
		}

		_, err = tx.AddPoints(ctx, solver, 1)
		return err
	})
	if err != nil {
		return wrap("compensate revoke", solver, threadID, err)
	}
	return nil
}

// Points возвращает очки пользователя (0 для неизвестного, запись не создаётся).
func (s *Service) Points(ctx context.Context, userID string) (int, error) {
	return s.store.Points(ctx, userID)
}

// HasActiveSolution — засчитано ли решение пользователя в теме.
func (s *Service) HasActiveSolution(ctx context.Context, threadID, userID string) (bool, error) {
	return s.store.HasActiveSolution(ctx, threadID, userID)
}

// Leaderboard возвращает топ пользователей.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	return s.store.Leaderboard(ctx, limit)
}

// PruneEmpty удаляет пользователей без очков.
func (s *Service) PruneEmpty(ctx context.Context) (int64, error) {
	return s.store.PruneEmpty(ctx)
}

// wrap добавляет контекст к ошибке, сохраняя sentinel-ошибки для errors.Is.
func wrap(op string, user platform.User, threadID string, err error) error {
	return fmt.Errorf("%s (user=%s thread=%s): %w", op, user.ID, threadID, err)
}
