package config

import "testing"

func validConfig() *Config {
	return &Config{
		Port:          8080,
		OCREngine:     "tesseract",
		OCRWorkers:    4,
		PDFImageScale: 1.5,
		VectorBackend: BackendEmbedded,
		QdrantURL:     "localhost:6334",
		MaxFileSize:   1024 * 1024,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected a valid config to pass validation, got %v", err)
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an out-of-range port")
	}
}

func TestValidateRejectsUnknownOCREngine(t *testing.T) {
	cfg := validConfig()
	cfg.OCREngine = "unknown"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an unknown OCR engine")
	}
}

func TestValidateRejectsRemoteBackendWithoutQdrantURL(t *testing.T) {
	cfg := validConfig()
	cfg.VectorBackend = BackendRemote
	cfg.QdrantURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error when the remote backend has no Qdrant URL")
	}
}

func TestValidateRejectsTinyMaxFileSize(t *testing.T) {
	cfg := validConfig()
	cfg.MaxFileSize = 100
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for a max file size below 1KB")
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV("a,b, c,,d")
	want := []string{"a", "b", " c", "d"}
	if len(got) != len(want) {
		t.Fatalf("splitCSV returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitCSV returned %v, want %v", got, want)
		}
	}
}

func TestSplitCSVEmptyString(t *testing.T) {
	got := splitCSV("")
	if len(got) != 0 {
		t.Fatalf("expected no fields for an empty string, got %v", got)
	}
}

func TestGetEnvAsIntOrDefaultFallsBackOnInvalid(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "not-a-number")
	if got := getEnvAsIntOrDefault("TEST_INT_VAR", 42); got != 42 {
		t.Fatalf("expected fallback to default on invalid input, got %d", got)
	}
}

func TestGetEnvAsIntOrDefaultParsesValid(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "7")
	if got := getEnvAsIntOrDefault("TEST_INT_VAR", 42); got != 7 {
		t.Fatalf("expected parsed value 7, got %d", got)
	}
}
