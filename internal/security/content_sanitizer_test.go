package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "段落と改行",
			input:        "<p>第1章</p>行1<br>行2",
			wantContains: []string{"<p>第1章</p>", "<br>"},
		},
		{
			name:         "見出し",
			input:        "<h2>概要</h2>",
			wantContains: []string{"<h2>概要</h2>"},
		},
		{
			name:         "リスト",
			input:        "<ol><li>準備</li><li>実習</li></ol>",
			wantContains: []string{"<ol>", "<li>準備</li>", "</ol>"},
		},
		{
			name:         "コードブロック",
			input:        "<pre><code>fmt.Println(1)</code></pre>",
			wantContains: []string{"<pre><code>fmt.Println(1)</code></pre>"},
		},
		{
			name:         "強調",
			input:        "<strong>重要</strong><em>補足</em>",
			wantContains: []string{"<strong>重要</strong>", "<em>補足</em>"},
		},
		{
			name:         "https画像",
			input:        `<img src="https://cdn.example.com/a.png" alt="図1">`,
			wantContains: []string{`src="https://cdn.example.com/a.png"`, `alt="図1"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, want to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_RemovesDangerousMarkup は危険なタグと属性が除去されることを検証する。
func TestSanitize_RemovesDangerousMarkup(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{"scriptタグ", `<p>本文</p><script>alert(1)</script>`, []string{"<script", "alert(1)"}},
		{"iframeタグ", `<iframe src="https://evil.example.com"></iframe>`, []string{"<iframe"}},
		{"styleタグ", `<style>body{display:none}</style>`, []string{"<style", "display:none"}},
		{"onclick属性", `<p onclick="steal()">本文</p>`, []string{"onclick", "steal"}},
		{"onerror属性", `<img src="https://cdn.example.com/a.png" onerror="x()">`, []string{"onerror"}},
		{"javascriptリンク", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
		{"http画像", `<img src="http://cdn.example.com/a.png">`, []string{"http://cdn.example.com"}},
		{"data URI画像", `<img src="data:image/png;base64,AAAA">`, []string{"data:"}},
		{"相対リンク", `<a href="/admin">x</a>`, []string{`href="/admin"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, must not contain %q", tt.input, got, absent)
				}
			}
		})
	}
}

// TestSanitize_AnchorAttributes は外部リンクに安全な属性が付与されることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://go.dev/doc" target="_self">資料</a>`)

	for _, want := range []string{`href="https://go.dev/doc"`, `target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize() = %q, want to contain %q", got, want)
		}
	}
	if strings.Contains(got, `target="_self"`) {
		t.Errorf("Sanitize() = %q, target must be overridden", got)
	}
}

func TestSanitize_PlainTextAndWhitespace(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
	if got := sanitizer.Sanitize("  Goの基礎を学ぶ  "); got != "Goの基礎を学ぶ" {
		t.Errorf("Sanitize() = %q, want trimmed plain text", got)
	}
}

// TestSanitize_KeepsPlainTextCharacters はテキスト中の記号が文字参照に変換されないことを検証する。
func TestSanitize_KeepsPlainTextCharacters(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"アンパサンド", "Rock & Roll for beginners", "Rock & Roll for beginners"},
		{"引用符", `Tom's "Go" course`, `Tom's "Go" course`},
		{"タグ内の記号", `<p>R&D "入門"</p>`, `<p>R&D "入門"</p>`},
		{"不等号", "1 < 2 > 0", "1 &lt; 2 &gt; 0"},
		{"エスケープ済みタグは文字のまま", "&lt;script&gt;alert(1)&lt;/script&gt;", "&lt;script&gt;alert(1)&lt;/script&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_AttributeQuotesStayEscaped は属性値の引用符が属性の外に出ないことを検証する。
func TestSanitize_AttributeQuotesStayEscaped(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<img src="https://cdn.example.com/a.png" alt='x" onerror="alert(1)'>`)

	if strings.Contains(got, ` onerror="alert(1)"`) {
		t.Errorf("Sanitize() = %q, attribute value escaped its quotes", got)
	}
	if !strings.Contains(got, "&#34;") {
		t.Errorf("Sanitize() = %q, want quote in alt to remain a character reference", got)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>Q&A: "本文"<script>x</script></p><a href="https://example.com">link</a> 1 < 2`
	once := sanitizer.Sanitize(input)
	twice := sanitizer.Sanitize(once)
	if once != twice {
		t.Errorf("not idempotent:\n once  = %q\n twice = %q", once, twice)
	}
}
