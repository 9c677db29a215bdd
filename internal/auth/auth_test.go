package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWT(t *testing.T) {
	t.Run("Valid_JWT", func(t *testing.T) {
		want := Identity{UserID: uuid.New(), Username: "ann"}
		tokenSecret := "validtokensecret"
		expiration := 15 * time.Second
		tokenString, err := MakeJWT(want, "synapse", tokenSecret, expiration)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		got, err := ValidateJWT(tokenString, tokenSecret, "synapse")
		if err != nil {
			t.Fatalf("ValidateJWT() error = %+v", err)
		}
		if got != want {
			t.Errorf("want = %+v, got = %+v", want, got)
		}
	})

	t.Run("Missing_name_falls_back_to_id", func(t *testing.T) {
		userID := uuid.New()
		tokenString, err := MakeJWT(Identity{UserID: userID}, "", "s", time.Minute)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		got, err := ValidateJWT(tokenString, "s", "")
		if err != nil {
			t.Fatalf("ValidateJWT() error = %+v", err)
		}
		if got.Username != userID.String() {
			t.Errorf("want = %s, got = %s", userID, got.Username)
		}
	})

	t.Run("Incorrect_secret", func(t *testing.T) {
		tokenString, err := MakeJWT(Identity{UserID: uuid.New()}, "", "validtokensecret", 15*time.Second)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		_, err = ValidateJWT(tokenString, "fakesecret", "")
		if err == nil {
			t.Fatal("ValidateJWT() expected error for wrong secret")
		}
	})

	t.Run("Expired_token", func(t *testing.T) {
		tokenString, err := MakeJWT(Identity{UserID: uuid.New()}, "", "validtokensecret", -1*time.Second)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		_, err = ValidateJWT(tokenString, "validtokensecret", "")
		if err == nil {
			t.Fatal("ValidateJWT() expected error for expired token")
		}
	})

	t.Run("Wrong_issuer", func(t *testing.T) {
		tokenString, err := MakeJWT(Identity{UserID: uuid.New()}, "someone-else", "validtokensecret", time.Minute)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		_, err = ValidateJWT(tokenString, "validtokensecret", "synapse")
		if err == nil {
			t.Fatal("ValidateJWT() expected error for wrong issuer")
		}
	})

	t.Run("Missing_issuer", func(t *testing.T) {
		tokenString, err := MakeJWT(Identity{UserID: uuid.New()}, "", "validtokensecret", time.Minute)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		_, err = ValidateJWT(tokenString, "validtokensecret", "synapse")
		if err == nil {
			t.Fatal("ValidateJWT() expected error for missing issuer")
		}
	})

	t.Run("Corrupt_token", func(t *testing.T) {
		_, err := ValidateJWT("corrupttoken", "validtokensecret", "")
		if err == nil {
			t.Fatal("ValidateJWT() expected error for corrupt token")
		}
	})
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		target  string
		want    string
		wantErr bool
	}{
		{"bearer_header", "Bearer abc.def.ghi", "/rooms/1/messages", "abc.def.ghi", false},
		{"query_param", "", "/rooms/1/ws?token=abc.def.ghi", "abc.def.ghi", false},
		{"header_wins", "Bearer fromheader", "/rooms/1/ws?token=fromquery", "fromheader", false},
		{"malformed_header", "Basic dXNlcjpwYXNz", "/rooms/1/messages", "", true},
		{"nothing", "", "/rooms/1/messages", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := TokenFromRequest(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TokenFromRequest() error = %+v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("want = %q, got = %q", tt.want, got)
			}
		})
	}
}

func TestGetUserFromContext(t *testing.T) {
	t.Run("is_valid_identity", func(t *testing.T) {
		want := Identity{UserID: uuid.New(), Username: "ann"}
		got, err := GetUserFromContext(WithIdentity(context.Background(), want))
		if err != nil {
			t.Fatalf("GetUserFromContext(): expected identity but got error = %+v", err)
		}
		if got != want {
			t.Errorf("want %+v but got %+v", want, got)
		}
	})

	t.Run("wrong_type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), UserIDKey, "not-an-identity")
		_, err := GetUserFromContext(ctx)
		if err == nil {
			t.Fatal("GetUserFromContext(): expected error but got none")
		}
	})

	t.Run("no_context", func(t *testing.T) {
		_, err := GetUserFromContext(context.Background())
		if err == nil {
			t.Fatal("GetUserFromContext(): expected error but got none")
		}
	})
}
