package security

import "testing"

// TestSanitize_PlainText はタグを含まないテキストがそのまま通過することを検証する。
func TestSanitize_PlainText(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "英数字", input: "Team sync", want: "Team sync"},
		{name: "アクセント付き文字", input: "Réunion d'équipe", want: "Réunion d'équipe"},
		{name: "比較記号", input: "a < b & c", want: "a < b & c"},
		{name: "前後の空白を除去", input: "  Planning  ", want: "Planning"},
		{name: "空文字列", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_StripsTags はHTMLタグが除去されることを検証する。
func TestSanitize_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "強調タグ", input: "<b>Demo</b> day", want: "Demo day"},
		{name: "scriptは中身ごと除去", input: "<script>alert(1)</script>Retro", want: "Retro"},
		{name: "イベント属性", input: `<img src=x onerror="alert(1)">Kickoff`, want: "Kickoff"},
		{name: "タグのみ", input: "<div></div>", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_Idempotent は2回適用しても結果が変わらないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := "<i>1:1</i> Alice & Bob"
	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize is not idempotent: %q != %q", once, twice)
	}
}
