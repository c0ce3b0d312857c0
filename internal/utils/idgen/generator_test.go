package idgen

import (
	"sort"
	"strings"
	"testing"
	"time"
)

func TestGenerateSecureID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		length     int
		wantPrefix string
	}{
		{name: "room ID", prefix: "room", length: 16, wantPrefix: "room_"},
		{name: "short ID", prefix: "test", length: 8, wantPrefix: "test_"},
		{name: "long ID", prefix: "test", length: 32, wantPrefix: "test_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateSecureID(tt.prefix, tt.length)
			if err != nil {
				t.Fatalf("GenerateSecureID() error = %v", err)
			}
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("GenerateSecureID() = %v, want prefix %v", got, tt.wantPrefix)
			}
			if len(got) != len(tt.wantPrefix)+tt.length {
				t.Errorf("GenerateSecureID() length = %d, want %d", len(got), len(tt.wantPrefix)+tt.length)
			}
			for _, char := range strings.TrimPrefix(got, tt.wantPrefix) {
				if !((char >= '0' && char <= '9') || (char >= 'a' && char <= 'z')) {
					t.Errorf("GenerateSecureID() contains invalid character: %c", char)
				}
			}
		})
	}
}

func TestNewSortableIDOrdering(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		ids = append(ids, NewSortableID("qe", at))
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("ids generated in the same millisecond must sort in creation order")
	}
	if !strings.HasPrefix(ids[0], "qe_") {
		t.Errorf("unexpected prefix in %s", ids[0])
	}
}
