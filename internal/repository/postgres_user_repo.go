package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/unilib/internal/model"
)

// userColumns はusersテーブルのSELECT対象カラム。
const userColumns = `id, email, name, role, password_hash,
	hemis_id, hemis_login, department_id, department_name, department_code,
	faculty_name, group_name, education_form, specialty_name, course, gpa,
	avatar_url, avatar_data, avatar_mime, hemis_token, last_synced_at,
	created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByHemisID はHEMIS IDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByHemisID(ctx context.Context, hemisID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE hemis_id = $1`,
		hemisID,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by hemis ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
// email/hemis_idの一意制約違反はIsDuplicateで判定できるエラーとして返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (
			id, email, name, role, password_hash,
			hemis_id, hemis_login, department_id, department_name, department_code,
			faculty_name, group_name, education_form, specialty_name, course, gpa,
			avatar_url, hemis_token, last_synced_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash,
		user.HemisID, user.HemisLogin, user.DepartmentID, user.DepartmentName, user.DepartmentCode,
		user.FacultyName, user.GroupName, user.EducationForm, user.SpecialtyName, user.Course, user.GPA,
		user.AvatarURL, user.HemisToken, user.LastSyncedAt, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateRegistrySnapshot はHEMISミラー項目・保存トークン・last_synced_atを更新する。
// WHERE句のlast_synced_atガードにより、並行する同期同士で古いスナップショットが
// 新しいスナップショットを上書きすることはない（last_synced_atは前進のみ）。
func (r *PostgresUserRepo) UpdateRegistrySnapshot(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			email = $2, name = $3,
			hemis_login = $4, department_id = $5, department_name = $6, department_code = $7,
			faculty_name = $8, group_name = $9, education_form = $10, specialty_name = $11,
			course = $12, gpa = $13, avatar_url = $14,
			hemis_token = $15, last_synced_at = $16, updated_at = now()
		 WHERE id = $1
		   AND (last_synced_at IS NULL OR last_synced_at <= $16)`,
		user.ID, user.Email, user.Name,
		user.HemisLogin, user.DepartmentID, user.DepartmentName, user.DepartmentCode,
		user.FacultyName, user.GroupName, user.EducationForm, user.SpecialtyName,
		user.Course, user.GPA, user.AvatarURL,
		user.HemisToken, user.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update registry snapshot: %w", err)
	}
	return nil
}

// UpdateHemisToken は保存済みHEMISアクセストークンのみを更新する。
func (r *PostgresUserRepo) UpdateHemisToken(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET hemis_token = $2, updated_at = now() WHERE id = $1`,
		userID, token,
	)
	if err != nil {
		return fmt.Errorf("failed to update hemis token: %w", err)
	}
	return nil
}

// UpdateAvatar はアバター画像データを更新する。
func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, userID string, avatarData []byte, avatarMime string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_data = $2, avatar_mime = $3, updated_at = now() WHERE id = $1`,
		userID, avatarData, avatarMime,
	)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}

// scanUser は1行分のusersレコードをUserにスキャンする。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Role, &user.PasswordHash,
		&user.HemisID, &user.HemisLogin, &user.DepartmentID, &user.DepartmentName, &user.DepartmentCode,
		&user.FacultyName, &user.GroupName, &user.EducationForm, &user.SpecialtyName, &user.Course, &user.GPA,
		&user.AvatarURL, &user.AvatarData, &user.AvatarMime, &user.HemisToken, &user.LastSyncedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// IsDuplicate はerrがusersテーブルの一意制約違反かを判定する。
// 並行リコンシリエーションの「作成済み」競合判定に使用する。
func IsDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 23505 = unique_violation
		return pqErr.Code == "23505"
	}
	return false
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
