package observability

import "testing"

func TestFieldConstructors(t *testing.T) {
	cases := []struct {
		field Field
		key   string
	}{
		{String("name", "out.ico"), "name"},
		{Int("images", 3), "images"},
		{Int64("offset", 1024), "offset"},
		{Uint32("length", 744), "length"},
		{Error("err", nil), "err"},
	}
	for _, tc := range cases {
		if tc.field.Key() != tc.key {
			t.Fatalf("key: got %q, want %q", tc.field.Key(), tc.key)
		}
	}
	if v := Int("images", 3).Value(); v != 3 {
		t.Fatalf("int value: got %v", v)
	}
}

func TestNopLoggerIsInert(t *testing.T) {
	var log Logger = NopLogger{}
	log = log.With(String("component", "compose"))
	log.Debug("ignored")
	log.Info("ignored")
	log.Warn("ignored")
	log.Error("ignored")
}
