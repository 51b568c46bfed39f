package model

import "net/url"

// Identity 当前浏览器会话所扮演的演示用户
type Identity struct {
	UserID         string `json:"userId" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"omitempty,email"`
	PhotoURL       string `json:"photoUrl" validate:"omitempty,url"`
	OrganizationID string `json:"organizationId"`
}

// PresenceEntry 在线用户（由协作后端的在线名单推导，不持久化）
type PresenceEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	IsOnline bool   `json:"isOnline"`
}

// AvatarURL 按种子生成 dicebear 头像
func AvatarURL(seed string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(seed)
}

// AsPresence 转换为在线名单条目，缺失字段按名字/邮箱依次回退
func (i Identity) AsPresence() PresenceEntry {
	name := i.Name
	if name == "" {
		name = i.Email
	}
	if name == "" {
		name = "Unknown User"
	}
	avatar := i.PhotoURL
	if avatar == "" {
		seed := i.Name
		if seed == "" {
			seed = i.UserID
		}
		avatar = AvatarURL(seed)
	}
	return PresenceEntry{
		ID:       i.UserID,
		Name:     name,
		Avatar:   avatar,
		IsOnline: true,
	}
}
