package keystore

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
)

func TestStore_LookupUnknown(t *testing.T) {
	s := New()
	if got := s.Lookup("sk-missing"); got != StatusUnknown {
		t.Errorf("Lookup() = %v, want %v", got, StatusUnknown)
	}
	if _, ok := s.Get("sk-missing"); ok {
		t.Error("Get() ok = true for a key never upserted")
	}
}

func TestStore_UpsertThenLookup(t *testing.T) {
	s := New()

	if _, err := s.Upsert("k", StatusValid); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got := s.Lookup("k"); got != StatusValid {
		t.Errorf("Lookup() = %v, want %v", got, StatusValid)
	}

	e, err := s.Upsert("k", StatusBlocked)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if e.Status != StatusBlocked {
		t.Errorf("Upsert().Status = %v, want %v", e.Status, StatusBlocked)
	}
	if got := s.Lookup("k"); got != StatusBlocked {
		t.Errorf("Lookup() = %v, want %v", got, StatusBlocked)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	s := New()
	for range 3 {
		if _, err := s.Upsert("k", StatusBlocked); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if got := s.Lookup("k"); got != StatusBlocked {
		t.Errorf("Lookup() = %v, want %v", got, StatusBlocked)
	}
}

func TestStore_KeysAreCaseSensitive(t *testing.T) {
	s := New()
	if _, err := s.Upsert("SK-abc", StatusBlocked); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got := s.Lookup("sk-abc"); got != StatusUnknown {
		t.Errorf("Lookup(sk-abc) = %v, want %v", got, StatusUnknown)
	}
}

func TestStore_UpsertRejectsInvalid(t *testing.T) {
	s := New()

	if _, err := s.Upsert("", StatusValid); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Upsert(\"\") error = %v, want %v", err, ErrEmptyKey)
	}
	if _, err := s.Upsert("k", StatusUnknown); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Upsert(unknown) error = %v, want %v", err, ErrInvalidStatus)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_UpdatedAtAdvances(t *testing.T) {
	s := New()
	first, err := s.Upsert("k", StatusValid)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	second, err := s.Upsert("k", StatusBlocked)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v then %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestStore_CountsAndKeys(t *testing.T) {
	s := New()
	for _, k := range []string{"c", "a", "b"} {
		if _, err := s.Upsert(k, StatusValid); err != nil {
			t.Fatalf("Upsert(%s) error = %v", k, err)
		}
	}
	if _, err := s.Upsert("b", StatusBlocked); err != nil {
		t.Fatalf("Upsert(b) error = %v", err)
	}

	valid, blocked := s.Counts()
	if valid != 2 || blocked != 1 {
		t.Errorf("Counts() = %d, %d, want 2, 1", valid, blocked)
	}
	if got := s.Keys(StatusValid); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("Keys(valid) = %v, want [a c]", got)
	}
	if got := s.Keys(StatusBlocked); !slices.Equal(got, []string{"b"}) {
		t.Errorf("Keys(blocked) = %v, want [b]", got)
	}
}

// Writers observe their own write immediately even while readers hammer the store.
func TestStore_ConcurrentReadWrite(t *testing.T) {
	s := New()
	const writers = 8
	const iterations = 500

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					st := s.Lookup(fmt.Sprintf("key-%d", r))
					if st != StatusUnknown && st != StatusValid && st != StatusBlocked {
						t.Errorf("Lookup() returned impossible status %v", st)
						return
					}
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", w)
			for i := range iterations {
				status := StatusValid
				if i%2 == 0 {
					status = StatusBlocked
				}
				if _, err := s.Upsert(key, status); err != nil {
					t.Errorf("Upsert() error = %v", err)
					return
				}
				if got := s.Lookup(key); got != status {
					t.Errorf("Lookup(%s) = %v after Upsert(%v)", key, got, status)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()
	if s.Len() != writers {
		t.Errorf("Len() = %d, want %d", s.Len(), writers)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "long key", key: "sk-1234567890abcdef", want: "sk-12345***********"},
		{name: "short key", key: "short", want: "*****"},
		{name: "exactly prefix length", key: "12345678", want: "********"},
		{name: "one over prefix", key: "123456789", want: "12345678*"},
		{name: "empty", key: "", want: ""},
		{name: "hidden part already stars", key: "sk-12345***", want: "sk-12345###"},
		{name: "short all stars", key: "****", want: "####"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mask(tt.key); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestMask_NeverRevealsKey(t *testing.T) {
	keys := []string{
		"a", "ab", "sk-1", "12345678", "123456789", "sk-live-abcdefghijklmnop",
		"********x", "x********", "sk-12345*", "ключ-ключ-ключ",
	}
	for _, k := range keys {
		masked := Mask(k)
		if masked == k || strings.Contains(masked, k) {
			t.Errorf("Mask(%q) = %q reveals the key", k, masked)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "ok", want: StatusValid},
		{in: "valid", want: StatusValid},
		{in: "OK", want: StatusValid},
		{in: "blocked", want: StatusBlocked},
		{in: " Blocked ", want: StatusBlocked},
		{in: "expired", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Errorf("ParseStatus(%q) error = %v, want %v", tt.in, err, ErrInvalidStatus)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusValid:   "valid",
		StatusBlocked: "blocked",
		StatusUnknown: "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
