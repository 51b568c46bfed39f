package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestSequencerLastIssuedWins(t *testing.T) {
	s := NewRequestSequencer()

	s.Observe("tab-1", 1)
	s.Observe("tab-1", 2)

	// 第一次搜索的响应晚于第二次到达
	assert.ErrorIs(t, s.Check("tab-1", 1), ErrStaleRequest)
	assert.NoError(t, s.Check("tab-1", 2))

	// 旧序号不会回退最新值
	s.Observe("tab-1", 1)
	assert.NoError(t, s.Check("tab-1", 2))
}

func TestRequestSequencerIsolatesTabs(t *testing.T) {
	s := NewRequestSequencer()
	s.Observe("tab-1", 5)

	assert.NoError(t, s.Check("tab-2", 1))
	assert.NoError(t, s.Check("tab-1", 0))
	assert.NoError(t, s.Check("", 1))
}
