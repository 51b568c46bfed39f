package collab

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/user/movienight/internal/model"
)

// Presence 文档内的在线名单（在线/离开状态由后端计算）
type Presence struct {
	backend    Backend
	documentID string
}

// NewPresence 创建在线名单来源
func NewPresence(backend Backend, documentID string) *Presence {
	return &Presence{backend: backend, documentID: documentID}
}

// CurrentRoster 当前在线身份，同一用户多标签页只计一次
func (p *Presence) CurrentRoster(ctx context.Context) ([]model.Identity, error) {
	records, err := p.backend.Roster(ctx, p.documentID)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", p.documentID, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SeenAt.Equal(records[j].SeenAt) {
			return records[i].ClientID < records[j].ClientID
		}
		return records[i].SeenAt.Before(records[j].SeenAt)
	})

	seen := make(map[string]bool, len(records))
	roster := make([]model.Identity, 0, len(records))
	for _, rec := range records {
		if seen[rec.Identity.UserID] {
			continue
		}
		seen[rec.Identity.UserID] = true
		roster = append(roster, rec.Identity)
	}
	return roster, nil
}

// OnRosterChange 名单变化时回调最新名单
func (p *Presence) OnRosterChange(ctx context.Context, callback func([]model.Identity)) (func(), error) {
	sub, err := p.backend.Subscribe(ctx, PresenceChannel(p.documentID))
	if err != nil {
		return nil, fmt.Errorf("subscribe presence %s: %w", p.documentID, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case _, ok := <-sub.Messages():
				if !ok {
					return
				}
				roster, err := p.CurrentRoster(ctx)
				if err != nil {
					continue
				}
				callback(roster)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}, nil
}
