package normalize

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	cases := []string{
		"  TOYOTA   YARIS   SOL L  ",
		"CAMIÓN tanque tanque DIESEL",
		"INTERNATIONAL TRACTO CAMION 4X2 DIESEL VIN 3HSDZAPT7NN354987",
		"",
		"   ",
	}
	for _, c := range cases {
		once := Normalize(c)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", c, once, twice)
		}
	}
}

func TestNormalizeLowercasesAndTrims(t *testing.T) {
	got := Normalize("  TOYOTA   YARIS  ")
	want := "toyota yaris"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeFoldsDiacritics(t *testing.T) {
	got := Normalize("CAMIÓN")
	want := "camion"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeStripsVIN(t *testing.T) {
	got := Normalize("INTERNATIONAL TRACTO CAMION 4X2 DIESEL VIN 3HSDZAPT7NN354987")
	if contains(got, "3hsdzapt7nn354987") {
		t.Errorf("expected VIN stripped, got %q", got)
	}
	if !contains(got, "tracto camion") {
		t.Errorf("expected core description preserved, got %q", got)
	}
}

func TestNormalizeCollapsesDuplicateWords(t *testing.T) {
	got := Normalize("tanque tanque diesel")
	want := "tanque diesel"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeNeverPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Normalize panicked: %v", r)
		}
	}()
	Normalize("\x00\xff невалидный текст 日本語 😀😀")
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
