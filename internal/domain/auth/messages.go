package auth

// User-facing messages. The application ships Korean copy.
const (
	MsgLoginFailed          = "로그인에 실패했습니다"
	MsgPasswordChangeFailed = "비밀번호 변경에 실패했습니다"
	MsgSessionExpired       = "세션이 만료되었습니다"
	MsgFirstLoginNotice     = "보안을 위해 비밀번호를 먼저 변경해주세요."

	MsgRequestFailed   = "요청 처리 중 오류가 발생했습니다"
	MsgAIRequestFailed = "AI 서비스 요청 중 오류가 발생했습니다"
	MsgNetworkError    = "네트워크 오류가 발생했습니다"
	MsgRequestTimeout  = "요청 시간이 초과되었습니다"
)

// Phrase pairs a known backend phrase with its localized replacement.
type Phrase struct {
	Match       string
	Replacement string
}

// BackendPhrases is the ordered substitution table applied to primary
// backend error messages. The first phrase found in a message wins.
var BackendPhrases = []Phrase{
	{Match: "Invalid credentials", Replacement: "이메일 또는 비밀번호가 올바르지 않습니다"},
	{Match: "User not found", Replacement: "존재하지 않는 사용자입니다"},
	{Match: "Account is locked", Replacement: "계정이 잠겼습니다. 관리자에게 문의하세요"},
	{Match: "Token expired", Replacement: "세션이 만료되었습니다. 다시 로그인해주세요"},
	{Match: "Access denied", Replacement: "접근 권한이 없습니다"},
	{
		Match:       "Password must be at least 8 characters with letters, numbers, and special characters",
		Replacement: "비밀번호는 영문, 숫자, 특수문자를 포함하여 8자 이상이어야 합니다",
	},
}
