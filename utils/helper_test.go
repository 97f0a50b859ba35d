package utils

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2HalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.005", "0.01"},
		{"1.234", "1.23"},
		{"1.235", "1.24"},
		{"89.995", "90"},
		{"500", "500"},
	}
	for _, tc := range cases {
		got := Round2(decimal.RequireFromString(tc.in))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Round2(%s) = %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(500), decimal.NewFromInt(18))
	if got.StringFixed(2) != "90.00" {
		t.Fatalf("Percent = %s", got.StringFixed(2))
	}
	got = Percent(decimal.RequireFromString("333.33"), decimal.RequireFromString("12.5"))
	if got.StringFixed(2) != "41.67" {
		t.Fatalf("Percent = %s", got.StringFixed(2))
	}
}

func TestClampZero(t *testing.T) {
	if !ClampZero(decimal.NewFromInt(-5)).IsZero() {
		t.Fatalf("negative must clamp to zero")
	}
	if !ClampZero(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)) {
		t.Fatalf("positive must pass through")
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	if err := ValidatePhoneNumber("9876543210", "IN"); err != nil {
		t.Fatalf("expected valid indian mobile: %v", err)
	}
	if err := ValidatePhoneNumber("12", "IN"); err == nil {
		t.Fatalf("expected invalid number")
	}
}

func TestCategoryAndStatus(t *testing.T) {
	cases := []struct {
		err    error
		cat    ErrorCategory
		status int
	}{
		{ValidationError("bad"), ErrValidationFailed, http.StatusBadRequest},
		{NotFoundError("missing"), ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", ErrorRecordNotFound), ErrNotFound, http.StatusNotFound},
		{NewAppError(ErrInsufficientStock, "short"), ErrInsufficientStock, http.StatusConflict},
		{NewAppError(ErrDuplicateBillNumber, "dup"), ErrDuplicateBillNumber, http.StatusConflict},
		{fmt.Errorf("tx: %w", NewAppError(ErrForbidden, "no")), ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), ErrInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := CategoryOf(tc.err); got != tc.cat {
			t.Fatalf("CategoryOf(%v) = %s want %s", tc.err, got, tc.cat)
		}
		if got := HTTPStatus(CategoryOf(tc.err)); got != tc.status {
			t.Fatalf("HTTPStatus(%v) = %d want %d", tc.err, got, tc.status)
		}
	}
}

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")
	token, err := JwtGenerate(7, "owner@example.com", "admin", "Bhondsi")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	parsed, err := JwtValidate(token)
	if err != nil || !parsed.Valid {
		t.Fatalf("JwtValidate: %v", err)
	}
	claims := parsed.Claims.(*JwtCustomClaim)
	if claims.ID != 7 || claims.Role != "admin" || claims.Location != "Bhondsi" || claims.Email != "owner@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	os.Setenv("API_SECRET", "other-secret")
	defer os.Setenv("API_SECRET", "test-secret")
	if _, err := JwtValidate(token); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}
}

func TestBcrypt(t *testing.T) {
	hashed, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(string(hashed), "s3cret!"); err != nil {
		t.Fatalf("ComparePassword: %v", err)
	}
	if err := ComparePassword(string(hashed), "wrong"); err == nil {
		t.Fatalf("wrong password must fail")
	}
}

func TestBuildObjectAccessURL(t *testing.T) {
	cases := []struct {
		base, bucket, key, want string
	}{
		{"", "", "Bhondsi/products/a.jpg", "Bhondsi/products/a.jpg"},
		{"", "stone-media", "/Bhondsi/products/a.jpg", "https://storage.googleapis.com/stone-media/Bhondsi/products/a.jpg"},
		{"https://cdn.example.com/", "stone-media", "shared/heroes/b.png", "https://cdn.example.com/shared/heroes/b.png"},
		{"https://api.example.com/api/uploads/object?key=", "", "shared/x y.png", "https://api.example.com/api/uploads/object?key=shared%2Fx+y.png"},
		{"https://img.example.com/{objectKey}?w=400", "", "a/b.jpg", "https://img.example.com/a%2Fb.jpg?w=400"},
		{"https://img.example.com/{objectKey}", "", "a/b.jpg", "https://img.example.com/a/b.jpg"},
	}
	for _, tc := range cases {
		t.Setenv("STORAGE_ACCESS_BASE_URL", tc.base)
		t.Setenv("GCS_BUCKET", tc.bucket)
		if got := BuildObjectAccessURL(tc.key); got != tc.want {
			t.Fatalf("BuildObjectAccessURL(%q) base=%q = %q, want %q", tc.key, tc.base, got, tc.want)
		}
	}
}
