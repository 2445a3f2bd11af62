package registry

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeStudentID はHEMISアクセストークンから学籍番号（安定識別子）を取り出す。
// トークンは自己記述的なJWTであり、ペイロードのデコードだけで識別子が得られるため、
// ネットワーク呼び出しは一切行わない。署名検証もここでは行わない
// （トークンはHEMIS自身が発行した直後のものか、HEMISへのAPI呼び出しで検証される）。
//
// 識別子はstudent_idクレームから読み、無ければsubにフォールバックする。
// どちらも無い・トークンが不正な場合はエラーを返す（リコンシリエーションは終端する）。
func DecodeStudentID(token string) (string, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to decode hemis token: %w", err)
	}

	if v, ok := claims["student_id"]; ok {
		if id := claimToString(v); id != "" {
			return id, nil
		}
	}

	sub, err := claims.GetSubject()
	if err == nil && sub != "" {
		return sub, nil
	}

	return "", fmt.Errorf("hemis token has no student identifier claim")
}

// claimToString はクレーム値を文字列に正規化する。
// HEMISは識別子を文字列または数値で返すことがある。
func claimToString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatInt(int64(value), 10)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}
