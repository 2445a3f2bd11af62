package model

// RegistryCredentials はHEMISログイン資格情報を表す。
// 一時的な値であり、永続化してはならない。
type RegistryCredentials struct {
	Login    string
	Password string
}

// RegistryProfile はHEMISが保持する学生レコードを表す。
// Registry Clientが生成する読み取り専用データで、
// 任意フィールドは欠落しうる（欠落時はnil。空文字センチネルは使わない）。
type RegistryProfile struct {
	HemisID   string
	FullName  *string
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string

	DepartmentID   *int
	DepartmentName *string
	FacultyName    *string
	GroupName      *string
	EducationForm  *string
	SpecialtyName  *string
	Course         *int
	GPA            *float64
	AvatarURL      *string
}

// Department はHEMISの学部・学科レコードを表す。
type Department struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
