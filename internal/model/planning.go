package model

// PlanningItem 共享片单中的一项
type PlanningItem struct {
	ID       string        `json:"id"`
	Movie    Movie         `json:"movie"`
	AddedBy  PresenceEntry `json:"addedBy"`
	Votes    int           `json:"votes"`
	UserVote *int          `json:"userVote,omitempty"`
}

// IdentityChange 身份变更通知（跨标签页同步）
type IdentityChange struct {
	BrowserID string `json:"browserId"`
	ClientID  string `json:"clientId"` // 发起变更的标签页
	OldUserID string `json:"oldUserId"`
	NewUserID string `json:"newUserId"` // 为空表示已登出
}
