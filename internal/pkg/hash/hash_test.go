package hash

import (
	"strings"
	"testing"
)

func TestCalculateSHA3(t *testing.T) {
	digest, size, err := CalculateSHA3(strings.NewReader(""))
	if err != nil {
		t.Fatal("Error:", err)
	}
	if digest != "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a" {
		t.Fatalf("Unexpected digest: %q", digest)
	}
	if size != 0 {
		t.Fatalf("Unexpected size: %d", size)
	}
	digest, size, err = CalculateSHA3(strings.NewReader("int main() {}"))
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(digest) != 64 || size != 13 {
		t.Fatalf("Unexpected digest %q of size %d", digest, size)
	}
}
