// Package identity はレジストリの生レコードをローカルアカウント形式に変換する。
package identity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hitoshi/unilib/internal/model"
)

// defaultDepartmentCode は未知の学部IDに対するフォールバックコード。
const defaultDepartmentCode = "001"

// departmentCodes はレジストリの学部IDからローカルの3桁コードへの対応表。
// 意図的に損失のある対応であり、未登録のIDはdefaultDepartmentCodeに落ちる。
var departmentCodes = map[int]string{
	11: "101",
	12: "102",
	13: "103",
	14: "104",
	15: "105",
	21: "201",
	22: "202",
}

// AccountFields はMapProfileの出力。アカウント作成・更新に使うフィールドの部分集合。
// レジストリ側で欠落していた任意フィールドはnilのまま保持する
// （空文字センチネルには決して変換しない）。
type AccountFields struct {
	Email          string
	Name           string
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
}

// MapProfile はレジストリプロフィールをローカルアカウントのフィールドに変換する。
// メールアドレスはレジストリ提供値を優先し、無ければ<login>@<emailDomain>を合成する。
// 表示名はfull_nameの正規化、無ければfirst+last、それも無ければログイン名。
func MapProfile(profile *model.RegistryProfile, login, emailDomain string) AccountFields {
	fields := AccountFields{
		Email:          mapEmail(profile, login, emailDomain),
		Name:           mapName(profile, login),
		DepartmentID:   profile.DepartmentID,
		DepartmentName: profile.DepartmentName,
		FacultyName:    profile.FacultyName,
		GroupName:      profile.GroupName,
		EducationForm:  profile.EducationForm,
		SpecialtyName:  profile.SpecialtyName,
		Course:         profile.Course,
		GPA:            profile.GPA,
		AvatarURL:      profile.AvatarURL,
	}
	if profile.DepartmentID != nil {
		code := MapDepartmentCode(*profile.DepartmentID)
		fields.DepartmentCode = &code
	}
	return fields
}

// MapDepartmentCode はレジストリの学部IDをローカルの3桁コードに変換する。
// 未知のIDはデフォルトコード"001"となり、決して失敗しない。
func MapDepartmentCode(departmentID int) string {
	if code, ok := departmentCodes[departmentID]; ok {
		return code
	}
	return defaultDepartmentCode
}

// NormalizeName はレジストリの全大文字表記を表示用に正規化する。
// 全体を小文字化したのち、空白区切りの各トークンの先頭だけを大文字にする。
func NormalizeName(raw string) string {
	tokens := strings.Fields(strings.ToLower(raw))
	for i, token := range tokens {
		runes := []rune(token)
		runes[0] = unicode.ToUpper(runes[0])
		tokens[i] = string(runes)
	}
	return strings.Join(tokens, " ")
}

// mapEmail はメールアドレスを決定する。レジストリ提供値が空ならログイン名から合成する。
func mapEmail(profile *model.RegistryProfile, login, emailDomain string) string {
	if profile.Email != nil && *profile.Email != "" {
		return *profile.Email
	}
	return fmt.Sprintf("%s@%s", login, emailDomain)
}

// mapName は表示名を決定する。
func mapName(profile *model.RegistryProfile, login string) string {
	if profile.FullName != nil && *profile.FullName != "" {
		return NormalizeName(*profile.FullName)
	}
	if profile.FirstName != nil && profile.LastName != nil {
		return NormalizeName(*profile.LastName + " " + *profile.FirstName)
	}
	return login
}
