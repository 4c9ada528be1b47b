package crypto

import (
	"strings"
	"testing"
)

// TestHashPassword tests password hashing functionality
func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("SecurePassword123!")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	// Verify hash format
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Error("Hash should start with $argon2id$")
	}

	// Verify hash has correct number of parts
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Errorf("Hash should have 6 parts, got %d", len(parts))
	}

	if parts[1] != "argon2id" {
		t.Errorf("Expected algorithm argon2id, got %s", parts[1])
	}
}

// TestHashPasswordSaltsEachCall tests that each hash gets a fresh salt
func TestHashPasswordSaltsEachCall(t *testing.T) {
	password := "SamePassword123"

	hash1, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	hash2, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash1 == hash2 {
		t.Error("Two hashes of the same password should differ in salt")
	}

	// Both must still verify
	if !VerifyPassword(password, hash1) || !VerifyPassword(password, hash2) {
		t.Error("Both salted hashes should verify the original password")
	}
}

// TestVerifyPassword tests password verification with correct password
func TestVerifyPassword(t *testing.T) {
	password := "CorrectPassword123!"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if !VerifyPassword(password, hash) {
		t.Error("VerifyPassword should return true for correct password")
	}
}

// TestVerifyPasswordIncorrect tests password verification with incorrect password
func TestVerifyPasswordIncorrect(t *testing.T) {
	hash, err := HashPassword("CorrectPassword123!")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if VerifyPassword("WrongPassword123!", hash) {
		t.Error("VerifyPassword should return false for incorrect password")
	}
}

// TestVerifyPasswordCaseSensitive tests that password verification is case-sensitive
func TestVerifyPasswordCaseSensitive(t *testing.T) {
	password := "CaseSensitive123"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if VerifyPassword("casesensitive123", hash) {
		t.Error("Password verification should be case-sensitive")
	}

	if VerifyPassword("CASESENSITIVE123", hash) {
		t.Error("Password verification should be case-sensitive")
	}
}

// TestVerifyPasswordInvalidFormat tests verification with malformed hash
func TestVerifyPasswordInvalidFormat(t *testing.T) {
	password := "SomePassword123"

	testCases := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"invalid format", "not-a-valid-hash"},
		{"too few parts", "$argon2id$v=19$m=65536"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$salt$hash"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifyPassword(password, tc.hash) {
				t.Errorf("VerifyPassword should return false for %s", tc.name)
			}
		})
	}
}

// TestHashPasswordSpecialCharacters tests password with special characters
func TestHashPasswordSpecialCharacters(t *testing.T) {
	passwords := []string{
		"P@ssw0rd!",
		"Test#123$%^",
		"Unicode密码测试",
		"Emoji😀🔒🔑",
		"Newline\nPassword",
		"Tab\tPassword",
	}

	for _, password := range passwords {
		t.Run(password, func(t *testing.T) {
			hash, err := HashPassword(password)
			if err != nil {
				t.Fatalf("HashPassword failed: %v", err)
			}

			if !VerifyPassword(password, hash) {
				t.Errorf("Password with special characters should verify: %s", password)
			}
		})
	}
}

// TestHashPasswordParameters tests that hash contains expected Argon2 parameters
func TestHashPasswordParameters(t *testing.T) {
	hash, err := HashPassword("TestPassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	parts := strings.Split(hash, "$")

	if len(parts) != 6 {
		t.Fatalf("Expected 6 parts in hash, got %d", len(parts))
	}

	// Check parameters part (format: m=65536,t=3,p=4)
	params := parts[3]
	expectedParams := "m=65536,t=3,p=4"
	if params != expectedParams {
		t.Errorf("Expected parameters %s, got %s", expectedParams, params)
	}

	// Check version part
	expectedVersion := "v=19" // Argon2 version 19
	if parts[2] != expectedVersion {
		t.Errorf("Expected version %s, got %s", expectedVersion, parts[2])
	}
}

// BenchmarkHashPassword benchmarks password hashing performance
func BenchmarkHashPassword(b *testing.B) {
	password := "BenchmarkPassword123!"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword(password)
	}
}

// BenchmarkVerifyPassword benchmarks password verification performance
func BenchmarkVerifyPassword(b *testing.B) {
	password := "BenchmarkPassword123!"
	hash, err := HashPassword(password)
	if err != nil {
		b.Fatalf("HashPassword failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = VerifyPassword(password, hash)
	}
}
