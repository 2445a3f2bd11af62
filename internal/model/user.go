// Package model はドメインモデルを定義する。
package model

import "time"

// User はローカルアカウントを表す。
// HEMISと紐付いたアカウントはHemisIDが非nilとなり、
// 学籍情報のミラー（学部・グループ・GPA等）を保持する。
type User struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash string

	// HEMIS紐付け情報。未紐付けアカウントではすべてnil。
	HemisID        *string
	HemisLogin     *string
	DepartmentID   *int
	DepartmentName *string
	DepartmentCode *string
	FacultyName    *string
	GroupName      *string
	EducationForm  *string
	SpecialtyName  *string
	Course         *int
	GPA            *float64
	AvatarURL      *string
	AvatarData     []byte
	AvatarMime     *string

	// HemisToken はHEMISへの再同期呼び出しにのみ使用する。
	// HTTPレスポンスには決して含めないこと。
	HemisToken *string

	// LastSyncedAt は最後にHEMISからプロフィールを反映した日時。
	// 一度設定されたら過去方向には動かない。
	LastSyncedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsHemisLinked はアカウントがHEMISに紐付いているかを返す。
func (u *User) IsHemisLinked() bool {
	return u.HemisID != nil && *u.HemisID != "" && u.HemisToken != nil && *u.HemisToken != ""
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
