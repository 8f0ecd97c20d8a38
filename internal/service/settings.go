package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/seed"
	"github.com/jipraks/kasirgratisan/internal/store"
)

type StoreProfile struct {
	StoreName     string `json:"storeName"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	ReceiptFooter string `json:"receiptFooter"`
	ThemeColor    string `json:"themeColor,omitempty"`
}

// Settings returns the store settings record, creating an empty one with a
// device id if the store has none.
func (s *Service) Settings(ctx context.Context) (domain.StoreSettings, error) {
	current, err := s.settings.First(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.StoreSettings{}, err
	}
	created := domain.StoreSettings{DeviceID: seed.NewDeviceID()}
	id, err := s.settings.Add(ctx, created)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	created.ID = id
	return created, nil
}

func (s *Service) updateSettings(ctx context.Context, fn func(*domain.StoreSettings)) (domain.StoreSettings, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	current, err := s.Settings(ctx)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	fn(&current)
	if err := s.settings.Put(ctx, current.ID, current); err != nil {
		return domain.StoreSettings{}, err
	}
	return current, nil
}

func (s *Service) UpdateStoreProfile(ctx context.Context, profile StoreProfile) (domain.StoreSettings, error) {
	name := strings.TrimSpace(profile.StoreName)
	if name == "" {
		return domain.StoreSettings{}, domain.Invalid("storeName", "must not be empty")
	}
	return s.updateSettings(ctx, func(st *domain.StoreSettings) {
		st.StoreName = name
		st.Address = strings.TrimSpace(profile.Address)
		st.Phone = strings.TrimSpace(profile.Phone)
		st.ReceiptFooter = strings.TrimSpace(profile.ReceiptFooter)
		if profile.ThemeColor != "" {
			st.ThemeColor = profile.ThemeColor
		}
	})
}

// CompleteOnboarding saves the first-run store profile and marks onboarding
// as done.
func (s *Service) CompleteOnboarding(ctx context.Context, profile StoreProfile) (domain.StoreSettings, error) {
	if _, err := s.UpdateStoreProfile(ctx, profile); err != nil {
		return domain.StoreSettings{}, err
	}
	return s.updateSettings(ctx, func(st *domain.StoreSettings) { st.OnboardingDone = true })
}

func (s *Service) SetTheme(ctx context.Context, color string) (domain.StoreSettings, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return domain.StoreSettings{}, domain.Invalid("themeColor", "must not be empty")
	}
	return s.updateSettings(ctx, func(st *domain.StoreSettings) { st.ThemeColor = color })
}

func (s *Service) DeviceID(ctx context.Context) (string, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return "", err
	}
	return st.DeviceID, nil
}

// BackupDue reports whether the cashier should be reminded to export a
// backup: never backed up, or the last backup is at least the reminder
// interval old.
func (s *Service) BackupDue(ctx context.Context) (bool, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return false, err
	}
	return backupDue(st.LastBackupAt, s.clock(), s.backupInterval), nil
}

func backupDue(last *time.Time, now time.Time, interval time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= interval
}
