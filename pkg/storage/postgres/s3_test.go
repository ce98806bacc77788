package postgres

import (
	"errors"
	"testing"
	"time"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"not found code", errors.New("operation error S3: HeadObject, https response error StatusCode: 404, NotFound"), true},
		{"no such key code", errors.New("NoSuchKey: The specified key does not exist"), true},
		{"access denied", errors.New("AccessDenied: insufficient permissions"), false},
		{"generic error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFoundError(tt.err); got != tt.want {
				t.Errorf("isNotFoundError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsBucketAlreadyExistsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"already exists", errors.New("BucketAlreadyExists: the requested bucket name is not available"), true},
		{"owned by you", errors.New("BucketAlreadyOwnedByYou: your previous request succeeded"), true},
		{"unrelated error", errors.New("SlowDown: reduce your request rate"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBucketAlreadyExistsError(tt.err); got != tt.want {
				t.Errorf("isBucketAlreadyExistsError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestObjectInfo_Fields(t *testing.T) {
	now := time.Now()
	info := ObjectInfo{
		Key:          "corpus/Docs/HR/handbook.txt",
		ETag:         "686897696a7c876b7e",
		Size:         2048,
		LastModified: now,
	}

	if info.Key != "corpus/Docs/HR/handbook.txt" {
		t.Errorf("Key = %q", info.Key)
	}
	if info.ETag != "686897696a7c876b7e" {
		t.Errorf("ETag = %q", info.ETag)
	}
	if info.Size != 2048 {
		t.Errorf("Size = %d, want 2048", info.Size)
	}
	if !info.LastModified.Equal(now) {
		t.Errorf("LastModified = %v, want %v", info.LastModified, now)
	}
}

func TestS3Client_Bucket(t *testing.T) {
	client := &S3Client{bucket: "lantern-corpus"}
	if client.Bucket() != "lantern-corpus" {
		t.Errorf("Bucket() = %q, want %q", client.Bucket(), "lantern-corpus")
	}
}
