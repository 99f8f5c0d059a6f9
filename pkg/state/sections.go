package state

import (
	"context"
	"slices"

	"go.uber.org/zap"
)

// BotFeatures is the botfeatures section.
type BotFeatures struct {
	AlwaysOnline   bool `json:"alwaysOnline"`
	AutoType       bool `json:"autoType"`
	AutoRecord     bool `json:"autoRecord"`
	AutoViewStatus bool `json:"autoViewStatus"`
}

// Anti-delete delivery modes.
const (
	AntiDeleteDM      = "dm"
	AntiDeleteRestore = "restore"
	AntiDeleteJID     = "jid"
)

// AntiDeleteSetting is one owner's entry in the antidelete section, keyed by
// the owner's phone number.
type AntiDeleteSetting struct {
	Enabled   bool   `json:"enabled"`
	Mode      string `json:"mode"`
	TargetJID string `json:"targetJid,omitempty"`
}

// SudoNumbers returns the persisted sudo list.
func (s *Store) SudoNumbers(ctx context.Context) ([]string, error) {
	return Get[[]string](ctx, s, SectionSudo)
}

// AddSudo appends number unless present. It reports whether it was added.
func (s *Store) AddSudo(ctx context.Context, number string) (bool, error) {
	added := false
	err := Modify(ctx, s, SectionSudo, func(list *[]string) error {
		if slices.Contains(*list, number) {
			return ErrSkipWrite
		}
		*list = append(*list, number)
		added = true
		return nil
	})
	return added, err
}

// RemoveSudo deletes number. It reports whether it was present.
func (s *Store) RemoveSudo(ctx context.Context, number string) (bool, error) {
	removed := false
	err := Modify(ctx, s, SectionSudo, func(list *[]string) error {
		idx := slices.Index(*list, number)
		if idx < 0 {
			return ErrSkipWrite
		}
		*list = slices.Delete(*list, idx, idx+1)
		removed = true
		return nil
	})
	return removed, err
}

// Features returns the botfeatures section.
func (s *Store) Features(ctx context.Context) (BotFeatures, error) {
	return Get[BotFeatures](ctx, s, SectionBotFeatures)
}

// AntiDelete returns every owner's anti-delete setting.
func (s *Store) AntiDelete(ctx context.Context) (map[string]AntiDeleteSetting, error) {
	return Get[map[string]AntiDeleteSetting](ctx, s, SectionAntiDelete)
}

// Sudoers merges the configured sudo numbers with the persisted list. A
// store failure is logged and the configured list is still returned.
func (s *Store) Sudoers(ctx context.Context, configured []string) []string {
	merged := make([]string, 0, len(configured))
	for _, n := range configured {
		if n != "" && !slices.Contains(merged, n) {
			merged = append(merged, n)
		}
	}
	stored, err := s.SudoNumbers(ctx)
	if err != nil {
		s.log.Warn("Failed to read sudo section", zap.Error(err))
		return merged
	}
	for _, n := range stored {
		if n != "" && !slices.Contains(merged, n) {
			merged = append(merged, n)
		}
	}
	return merged
}
