// Package testutil provides shared helpers for package tests
package testutil

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// ConcurrentTest runs a test function concurrently and reports any panics or errors
func ConcurrentTest(t *testing.T, concurrency int, iterations int, testFunc func(id int, iteration int) error) {
	var wg sync.WaitGroup
	errChan := make(chan error, concurrency*iterations)
	panicChan := make(chan interface{}, concurrency*iterations)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicChan <- fmt.Sprintf("Worker %d panicked: %v", workerID, r)
				}
			}()

			for iter := 0; iter < iterations; iter++ {
				if err := testFunc(workerID, iter); err != nil {
					errChan <- fmt.Errorf("worker %d, iteration %d: %w", workerID, iter, err)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errChan)
	close(panicChan)

	// Check for panics
	var panics []string
	for p := range panicChan {
		panics = append(panics, fmt.Sprint(p))
	}
	if len(panics) > 0 {
		t.Errorf("Panics occurred during concurrent test:\n%s", strings.Join(panics, "\n"))
	}

	// Check for errors
	var errors []string
	for err := range errChan {
		errors = append(errors, err.Error())
	}
	if len(errors) > 0 {
		t.Errorf("Errors occurred during concurrent test:\n%s", strings.Join(errors, "\n"))
	}
}

// GenerateLargeString creates a large string for chunking tests
func GenerateLargeString(sizeKB int) string {
	size := sizeKB * 1024
	b := make([]byte, size)
	for i := range b {
		b[i] = byte('a' + (i % 26))
	}
	return string(b)
}

// RandomString generates a random string of specified length
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

// WaitWithTimeout waits for a condition with timeout
func WaitWithTimeout(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

// AssertNoError fails the test if error is not nil
func AssertNoError(t *testing.T, err error, message string) {
	if err != nil {
		t.Fatalf("%s: %v", message, err)
	}
}

// AssertError fails the test if error is nil
func AssertError(t *testing.T, err error, message string) {
	if err == nil {
		t.Fatalf("%s: expected error but got nil", message)
	}
}

// AssertContains fails if the string doesn't contain the substring
func AssertContains(t *testing.T, str, substr string) {
	if !strings.Contains(str, substr) {
		t.Fatalf("Expected string to contain %q, got: %s", substr, str)
	}
}

// CaptureStderr captures stderr output during test
func CaptureStderr(t *testing.T, fn func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	_ = w.Close()
	os.Stderr = old

	var buf strings.Builder
	_, _ = io.Copy(&buf, r)
	return buf.String()
}
