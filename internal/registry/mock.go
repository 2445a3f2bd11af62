package registry

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/unilib/internal/model"
)

// mockSigningKey はモックトークンの署名キー。
// DecodeStudentIDは署名を検証しないため、値自体に意味はない。
var mockSigningKey = []byte("unilib-mock-hemis")

// mockStudent はモックレジストリの1学生分のレコード。
type mockStudent struct {
	password string
	profile  model.RegistryProfile
}

// MockProvider はHEMIS実レジストリの決定的なスタンドイン。
// 固定のインメモリテーブルに対して、Clientと同一の成功・失敗形状で応答する。
// 実レジストリの資格情報が設定されていない環境（開発・CI）で使用する。
type MockProvider struct {
	students map[string]mockStudent
}

// NewMockProvider は組み込みのサンプル学生を持つMockProviderを生成する。
func NewMockProvider() *MockProvider {
	return &MockProvider{students: builtinStudents()}
}

// Authenticate は固定テーブルに対して資格情報を検証し、
// DecodeStudentIDで読める形式の署名付きトークンを返す。
func (m *MockProvider) Authenticate(ctx context.Context, creds model.RegistryCredentials) (string, error) {
	student, ok := m.students[creds.Login]
	if !ok || student.password != creds.Password {
		return "", newError(KindInvalidCredentials, "login yoki parol noto'g'ri", nil)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"student_id": student.profile.HemisID,
		"sub":        creds.Login,
	})
	signed, err := token.SignedString(mockSigningKey)
	if err != nil {
		return "", newError(KindUnavailable, "failed to issue mock token", err)
	}
	return signed, nil
}

// FetchProfile はトークンから学籍番号を取り出し、対応するプロフィールを返す。
// 未知のトークンはKindUnauthorizedとなる（実レジストリの失効トークンと同じ形状）。
func (m *MockProvider) FetchProfile(ctx context.Context, token string) (*model.RegistryProfile, error) {
	hemisID, err := DecodeStudentID(token)
	if err != nil {
		return nil, newError(KindUnauthorized, "token rejected", err)
	}

	for _, student := range m.students {
		if student.profile.HemisID == hemisID {
			profile := student.profile
			return &profile, nil
		}
	}
	return nil, newError(KindUnauthorized, "token rejected", nil)
}

// FetchDepartments は固定の学部一覧を返す。
func (m *MockProvider) FetchDepartments(ctx context.Context) ([]model.Department, error) {
	return []model.Department{
		{ID: 11, Code: "101", Name: "Axborot texnologiyalari"},
		{ID: 12, Code: "102", Name: "Iqtisodiyot"},
		{ID: 13, Code: "103", Name: "Filologiya"},
	}, nil
}

// builtinStudents は組み込みサンプル学生のテーブルを返す。
// karimova_nodiraはemail欠落ケースで、合成メールアドレスの経路を通す。
func builtinStudents() map[string]mockStudent {
	return map[string]mockStudent{
		"aliyev_vali": {
			password: "hemis2024",
			profile: model.RegistryProfile{
				HemisID:        "368211100101",
				FullName:       strPtr("ALIYEV VALI"),
				FirstName:      strPtr("VALI"),
				LastName:       strPtr("ALIYEV"),
				Email:          strPtr("vali.aliyev@example.uz"),
				Phone:          strPtr("+998901234567"),
				DepartmentID:   intPtr(11),
				DepartmentName: strPtr("Axborot texnologiyalari"),
				FacultyName:    strPtr("Kompyuter injiniringi"),
				GroupName:      strPtr("KI-21-03"),
				EducationForm:  strPtr("Kunduzgi"),
				SpecialtyName:  strPtr("Dasturiy injiniring"),
				Course:         intPtr(3),
				GPA:            floatPtr(3.8),
				AvatarURL:      strPtr("https://hemis.example.uz/static/crop/1/avatar101.png"),
			},
		},
		"karimova_nodira": {
			password: "hemis2024",
			profile: model.RegistryProfile{
				HemisID:        "368211100202",
				FullName:       strPtr("KARIMOVA NODIRA"),
				FirstName:      strPtr("NODIRA"),
				LastName:       strPtr("KARIMOVA"),
				DepartmentID:   intPtr(12),
				DepartmentName: strPtr("Iqtisodiyot"),
				GroupName:      strPtr("IQ-22-01"),
				Course:         intPtr(2),
			},
		},
	}
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

// compile-time interface check
var _ Provider = (*MockProvider)(nil)
