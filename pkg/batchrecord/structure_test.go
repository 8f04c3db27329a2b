package batchrecord

import "testing"

// TestStructureSetup verifies the basic package structure is correct
func TestStructureSetup(t *testing.T) {
	// Test that we can create a codec
	codec := NewRecordCodec()
	if codec == nil {
		t.Error("NewRecordCodec returned nil")
	}

	// Test that we can create a record
	record := NewRecord([]byte("key"), []byte("value"))
	if record == nil {
		t.Error("NewRecord returned nil")
	}

	// Test basic field assignments
	if record.KeySize != 3 {
		t.Errorf("Expected KeySize 3, got %d", record.KeySize)
	}

	if record.ValueSize != 5 {
		t.Errorf("Expected ValueSize 5, got %d", record.ValueSize)
	}

	// Test size calculation
	expectedSize := 20 + 3 + 5 // header + key + value
	if record.Size() != expectedSize {
		t.Errorf("Expected size %d, got %d", expectedSize, record.Size())
	}
}

// TestEncodeDecodeValidate verifies the full round trip succeeds and a
// freshly constructed (un-encoded) record fails validation, since its
// CRC32 field has never been populated.
func TestEncodeDecodeValidate(t *testing.T) {
	codec := NewRecordCodec()

	encoded, err := codec.Encode([]byte("key"), []byte("value"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := decoded.Validate(); err != nil {
		t.Errorf("Validate on a round-tripped record: %v", err)
	}

	if _, err := codec.Decode([]byte{1, 2, 3}); err == nil {
		t.Error("Expected decode of truncated data to fail")
	}

	fresh := NewRecord([]byte("key"), []byte("value"))
	if err := fresh.Validate(); err == nil {
		t.Error("Expected validate to fail on a record whose CRC32 was never set")
	}
}
