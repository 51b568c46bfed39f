package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrConflict 乐观并发重试次数耗尽
var ErrConflict = errors.New("document update conflict")

const maxUpdateAttempts = 10

// Document 以整体替换方式同步的共享文档
//
// 每个实例持有一份本地缓存：本地写入与远端通知都会整体覆盖它。
// 值按不可变对待，调用方修改前需自行复制。
type Document[T any] struct {
	backend    Backend
	documentID string
	name       string

	mu      sync.RWMutex
	value   T
	version int64
}

// NewDocument 创建共享文档句柄，initial 为文档不存在时的初始值
func NewDocument[T any](backend Backend, documentID, name string, initial T) *Document[T] {
	return &Document[T]{
		backend:    backend,
		documentID: documentID,
		name:       name,
		value:      initial,
	}
}

// Read 从后端读取最新值并刷新本地缓存
func (d *Document[T]) Read(ctx context.Context) (T, error) {
	raw, version, err := d.backend.GetDocument(ctx, d.documentID, d.name)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("read %s: %w", d.name, err)
	}
	if raw == nil {
		v, _ := d.Cached()
		return v, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s: %w", d.name, err)
	}
	d.store(v, version)
	return v, nil
}

// Cached 返回本地缓存及其版本
func (d *Document[T]) Cached() (T, int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value, d.version
}

// Write 整体替换文档（最后写入者胜出）
func (d *Document[T]) Write(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.name, err)
	}
	version, err := d.backend.SetDocument(ctx, d.documentID, d.name, raw)
	if err != nil {
		return fmt.Errorf("write %s: %w", d.name, err)
	}
	d.store(v, version)
	return nil
}

// Update 基于版本号的读-改-写，冲突时重新读取后重试
func (d *Document[T]) Update(ctx context.Context, fn func(T) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if _, err := d.Read(ctx); err != nil {
			return zero, err
		}
		current, version := d.Cached()

		next, err := fn(current)
		if err != nil {
			return zero, err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return zero, fmt.Errorf("encode %s: %w", d.name, err)
		}
		newVersion, ok, err := d.backend.CompareAndSetDocument(ctx, d.documentID, d.name, version, raw)
		if err != nil {
			return zero, fmt.Errorf("write %s: %w", d.name, err)
		}
		if ok {
			d.store(next, newVersion)
			return next, nil
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s: %w", d.name, ErrConflict)
}

// OnRemoteChange 订阅文档整体替换（本实例写入的回显也会送达），回调前已刷新本地缓存；旧版本事件被忽略
func (d *Document[T]) OnRemoteChange(ctx context.Context, callback func(T)) (func(), error) {
	sub, err := d.backend.Subscribe(ctx, DocumentChannel(d.documentID, d.name))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", d.name, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case payload, ok := <-sub.Messages():
				if !ok {
					return
				}
				var evt DocumentEvent
				if err := json.Unmarshal(payload, &evt); err != nil {
					log.Printf("[Collab] 解析文档事件失败 (%s): %v", d.name, err)
					continue
				}
				var v T
				if err := json.Unmarshal(evt.Value, &v); err != nil {
					log.Printf("[Collab] 解析文档内容失败 (%s): %v", d.name, err)
					continue
				}
				d.store(v, evt.Version)
				if _, current := d.Cached(); evt.Version < current {
					continue
				}
				callback(v)
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

// store 只接受更新的版本
func (d *Document[T]) store(v T, version int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if version <= d.version {
		return false
	}
	d.value = v
	d.version = version
	return true
}
