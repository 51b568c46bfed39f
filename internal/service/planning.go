package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/user/movienight/internal/model"
)

// PlanningDocumentName 共享片单在协作文档中的名字
const PlanningDocumentName = "planningItems"

// 新加入片单时的默认评分
const defaultUserVote = 5

// SyncMode 片单写入方式
type SyncMode string

const (
	// SyncReplace 基于本地快照整体替换，最后写入者胜出
	SyncReplace SyncMode = "replace"
	// SyncCAS 基于版本号的比较并交换，冲突时重读重试
	SyncCAS SyncMode = "cas"
)

// ParseSyncMode 解析配置，未知值回退 replace
func ParseSyncMode(raw string) SyncMode {
	if SyncMode(raw) == SyncCAS {
		return SyncCAS
	}
	return SyncReplace
}

// PlanningDocument 共享片单文档（collab.Document 实现）
type PlanningDocument interface {
	Read(ctx context.Context) ([]model.PlanningItem, error)
	Cached() ([]model.PlanningItem, int64)
	Write(ctx context.Context, items []model.PlanningItem) error
	Update(ctx context.Context, fn func([]model.PlanningItem) ([]model.PlanningItem, error)) ([]model.PlanningItem, error)
	OnRemoteChange(ctx context.Context, callback func([]model.PlanningItem)) (func(), error)
}

var errUnchanged = errors.New("unchanged")

// PlanningStore 共享片单
type PlanningStore struct {
	doc  PlanningDocument
	mode SyncMode
	now  func() time.Time
}

// NewPlanningStore 创建片单
func NewPlanningStore(doc PlanningDocument, mode SyncMode) *PlanningStore {
	return &PlanningStore{doc: doc, mode: mode, now: time.Now}
}

// Items 本地缓存中的片单
func (s *PlanningStore) Items() []model.PlanningItem {
	items, _ := s.doc.Cached()
	if items == nil {
		return []model.PlanningItem{}
	}
	return items
}

// Refresh 从协作后端重新读取
func (s *PlanningStore) Refresh(ctx context.Context) ([]model.PlanningItem, error) {
	items, err := s.doc.Read(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.PlanningItem{}
	}
	return items, nil
}

// Watch 远端整体替换时回调
func (s *PlanningStore) Watch(ctx context.Context, callback func([]model.PlanningItem)) (func(), error) {
	return s.doc.OnRemoteChange(ctx, callback)
}

// Add 加入片单；同一目录条目已存在时不做任何事
func (s *PlanningStore) Add(ctx context.Context, movie model.Movie, by model.Identity) ([]model.PlanningItem, error) {
	vote := defaultUserVote
	return s.mutate(ctx, func(items []model.PlanningItem) ([]model.PlanningItem, error) {
		for _, item := range items {
			if item.Movie.ID == movie.ID {
				return nil, errUnchanged
			}
		}
		item := model.PlanningItem{
			ID:       fmt.Sprintf("%d-%d", movie.ID, s.now().UnixMilli()),
			Movie:    movie,
			AddedBy:  by.AsPresence(),
			Votes:    1,
			UserVote: &vote,
		}
		next := make([]model.PlanningItem, 0, len(items)+1)
		next = append(next, items...)
		return append(next, item), nil
	})
}

// Vote 评分；只有从未评分到已评分时票数加一
func (s *PlanningStore) Vote(ctx context.Context, itemID string, rating int) ([]model.PlanningItem, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	return s.mutate(ctx, func(items []model.PlanningItem) ([]model.PlanningItem, error) {
		found := false
		next := make([]model.PlanningItem, len(items))
		for i, item := range items {
			if item.ID == itemID {
				found = true
				if item.UserVote == nil {
					item.Votes++
				}
				r := rating
				item.UserVote = &r
			}
			next[i] = item
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		return next, nil
	})
}

// Remove 移出片单；不存在时不做任何事
func (s *PlanningStore) Remove(ctx context.Context, itemID string) ([]model.PlanningItem, error) {
	return s.mutate(ctx, func(items []model.PlanningItem) ([]model.PlanningItem, error) {
		next := make([]model.PlanningItem, 0, len(items))
		for _, item := range items {
			if item.ID != itemID {
				next = append(next, item)
			}
		}
		if len(next) == len(items) {
			return nil, errUnchanged
		}
		return next, nil
	})
}

func (s *PlanningStore) mutate(ctx context.Context, fn func([]model.PlanningItem) ([]model.PlanningItem, error)) ([]model.PlanningItem, error) {
	if s.mode == SyncCAS {
		next, err := s.doc.Update(ctx, fn)
		if errors.Is(err, errUnchanged) {
			return s.Items(), nil
		}
		return next, err
	}

	current := s.Items()
	next, err := fn(current)
	if errors.Is(err, errUnchanged) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.doc.Write(ctx, next); err != nil {
		log.Printf("[Planning] 写入片单失败: %v", err)
		return nil, err
	}
	return next, nil
}
