package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("BURROW_TEST_HOST", "reports.example.com")
	t.Setenv("BURROW_TEST_TOKEN", "secret")
	t.Setenv("BURROW_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "url: ${BURROW_TEST_HOST}", "url: reports.example.com"},
		{"unset", "url: ${BURROW_TEST_UNSET}", "url: "},
		{"fallback when unset", "dir: ${BURROW_TEST_UNSET:-/var/lib/burrow}", "dir: /var/lib/burrow"},
		{"fallback when empty", "dir: ${BURROW_TEST_EMPTY:-/tmp}", "dir: /tmp"},
		{"fallback ignored when set", "host: ${BURROW_TEST_HOST:-localhost}", "host: reports.example.com"},
		{"empty fallback", "token: ${BURROW_TEST_UNSET:-}", "token: "},
		{"several", "${BURROW_TEST_HOST}/${BURROW_TEST_TOKEN}", "reports.example.com/secret"},
		{"no references", "maximum_retries: 3", "maximum_retries: 3"},
		{"not a reference", "price: $5 and ${1BAD}", "price: $5 and ${1BAD}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandEnv_YAMLDocument(t *testing.T) {
	t.Setenv("BURROW_TEST_HOST", "reports.example.com")
	t.Setenv("BURROW_TEST_TOKEN", "secret")

	input := `submission:
  url: https://${BURROW_TEST_HOST}/post
  headers:
    Authorization: Bearer ${BURROW_TEST_TOKEN}`

	got := ExpandEnv(input)
	want := `submission:
  url: https://reports.example.com/post
  headers:
    Authorization: Bearer secret`

	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
