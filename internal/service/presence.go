package service

import (
	"context"
	"sort"

	"github.com/user/movienight/internal/model"
)

// PresenceSource 在线名单来源（collab.Presence 实现）
type PresenceSource interface {
	CurrentRoster(ctx context.Context) ([]model.Identity, error)
	OnRosterChange(ctx context.Context, callback func([]model.Identity)) (func(), error)
}

// OnlineUsers 把在线名单转换为展示用条目
//
// 当前用户不在名单中时补上，并排在最前；其余保持名单顺序。
func OnlineUsers(roster []model.Identity, current *model.Identity) []model.PresenceEntry {
	entries := make([]model.PresenceEntry, 0, len(roster)+1)
	found := false
	for _, id := range roster {
		if current != nil && id.UserID == current.UserID {
			found = true
		}
		entries = append(entries, id.AsPresence())
	}

	if current != nil && !found {
		self := current.AsPresence()
		if current.Name == "" {
			self.Name = "You"
		}
		entries = append(entries, self)
	}

	if current != nil {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ID == current.UserID && entries[j].ID != current.UserID
		})
	}
	return entries
}
