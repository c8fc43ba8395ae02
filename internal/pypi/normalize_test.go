package pypi

import "testing"

func TestNormalizeCollapsesSeparators(t *testing.T) {
	cases := map[string]string{
		"Django":          "django",
		"python-dateutil": "python-dateutil",
		"zope.interface":  "zope-interface",
		"foo__bar..baz":   "foo-bar-baz",
		"A-_-.B":          "a-b",
	}
	for input, expected := range cases {
		if got := Normalize(input); got != expected {
			t.Fatalf("Normalize(%q) = %q，预期 %q", input, got, expected)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"Django", "zope.interface", "foo__bar..baz", "requests"}
	for _, input := range inputs {
		once := Normalize(input)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize 应幂等: %q → %q → %q", input, once, twice)
		}
	}
}

func TestGuessVersionWheel(t *testing.T) {
	version, err := GuessVersion("requests-2.31.0-py3-none-any.whl")
	if err != nil {
		t.Fatalf("guess error: %v", err)
	}
	if version != "2.31.0" {
		t.Fatalf("unexpected version: %s", version)
	}
}

func TestGuessVersionEgg(t *testing.T) {
	version, err := GuessVersion("pytz-2004d-py2.3.egg")
	if err != nil {
		t.Fatalf("guess error: %v", err)
	}
	if version != "2004d" {
		t.Fatalf("unexpected version: %s", version)
	}
}

func TestGuessVersionSdist(t *testing.T) {
	cases := map[string]string{
		"requests-2.31.0.tar.gz":   "2.31.0",
		"python-dateutil-2.8.2.zip": "2.8.2",
		"pyyaml-5.4.1.tar.bz2":     "5.4.1",
	}
	for filename, expected := range cases {
		version, err := GuessVersion(filename)
		if err != nil {
			t.Fatalf("GuessVersion(%q) error: %v", filename, err)
		}
		if version != expected {
			t.Fatalf("GuessVersion(%q) = %q，预期 %q", filename, version, expected)
		}
	}
}

func TestGuessVersionRejectsUnparseable(t *testing.T) {
	for _, filename := range []string{"README", "noversion.tar.gz", "weird.rpm"} {
		if _, err := GuessVersion(filename); err == nil {
			t.Fatalf("GuessVersion(%q) 应失败", filename)
		}
	}
}
