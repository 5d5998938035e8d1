package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は表示名などのプレーンテキスト入力からマークアップを取り除く。
// 内部のbluemondayポリシーは並行利用に対して安全。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// 実体参照で二重に隠されたタグを剥がす回数の上限
const maxSanitizePasses = 3

// Sanitize はタグを除去し、前後の空白を取り除いた文字列を返す。
// bluemondayがエスケープした実体参照は元の文字に戻すが、
// 戻した結果がタグになる場合は再度除去する。
func (s *TextSanitizer) Sanitize(input string) string {
	out := input
	for range maxSanitizePasses {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}
