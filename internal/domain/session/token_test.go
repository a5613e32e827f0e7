package session

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

func TestTokenPayload_RoundTrip(t *testing.T) {
	issuedAt := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	payload := NewTokenPayload("sess-1", "teacher-1", issuedAt)

	token := payload.Encode()
	decoded, err := DecodeToken(token)
	require.NoError(t, err)

	assert.Equal(t, TokenType, decoded.Type)
	assert.Equal(t, "sess-1", decoded.SessionID)
	assert.Equal(t, "teacher-1", decoded.TeacherID)
	assert.Equal(t, issuedAt.UnixMilli(), decoded.IssuedAt)
}

func TestDecodeToken_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token Token
	}{
		{"empty", ""},
		{"not base64", "!!not-base64!!"},
		{"base64 but not json", Token(base64.StdEncoding.EncodeToString([]byte("hello")))},
		{"wrong type tag", Token(base64.StdEncoding.EncodeToString([]byte(`{"type":"OTHER_QR","sessionId":"sess-1"}`)))},
		{"missing session id", Token(base64.StdEncoding.EncodeToString([]byte(`{"type":"ATTENDANCE_QR","sessionId":""}`)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeToken(tt.token)
			assert.ErrorIs(t, err, shared.ErrTokenMalformed)
		})
	}
}

func TestTokenWindow_SlidingAcceptance(t *testing.T) {
	w := NewTokenWindow(3)
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	mint := func(i int) Token {
		return NewTokenPayload("sess-1", "teacher-1", base.Add(time.Duration(i)*5*time.Second)).Encode()
	}

	t1, t2, t3, t4, t5 := mint(1), mint(2), mint(3), mint(4), mint(5)

	w.Append(t1)
	w.Append(t2)
	w.Append(t3)
	assert.True(t, w.Contains(t1))
	assert.True(t, w.Contains(t2))
	assert.True(t, w.Contains(t3))
	assert.Equal(t, t3, w.Current())

	// The fourth issuance slides t1 out of the window.
	w.Append(t4)
	assert.False(t, w.Contains(t1))
	assert.True(t, w.Contains(t2))
	assert.True(t, w.Contains(t4))

	w.Append(t5)
	assert.False(t, w.Contains(t2))
	assert.True(t, w.Contains(t3))
	assert.True(t, w.Contains(t4))
	assert.True(t, w.Contains(t5))
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, t5, w.Current())
}

func TestTokenWindow_DefaultSize(t *testing.T) {
	w := NewTokenWindow(0)
	for i := 0; i < DefaultWindowSize+2; i++ {
		w.Append(NewTokenPayload("sess-1", "teacher-1", time.Now().Add(time.Duration(i)*time.Second)).Encode())
	}
	assert.Equal(t, DefaultWindowSize, w.Len())
}

func TestTokenWindow_Clear(t *testing.T) {
	w := NewTokenWindow(3)
	tok := NewTokenPayload("sess-1", "teacher-1", time.Now()).Encode()
	w.Append(tok)

	w.Clear()

	assert.False(t, w.Contains(tok))
	assert.Equal(t, Token(""), w.Current())
	assert.Equal(t, 0, w.Len())
}
