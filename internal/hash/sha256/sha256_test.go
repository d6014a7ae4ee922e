package sha256

import "testing"

func TestHasherHash(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input []byte
		want  string
	}{
		{"hello world", []byte("hello world"), "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
		{"empty", nil, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}

	h := New()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := h.Hash(tc.input)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
