package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanmaster/vanmaster/internal/profile"
)

func TestCleanForTTS_StripsTagsAndMarkdown(t *testing.T) {
	in := "[TIMELINE] 1945 | Cách mạng | *quan trọng* [PRACTICE]làm bài[/PRACTICE]"
	got := CleanForTTS(in)
	assert.NotContains(t, got, "[")
	assert.NotContains(t, got, "*")
	assert.Contains(t, got, "1945")
	assert.Contains(t, got, "làm bài")
}

func TestCleanForTTS_CapsLength(t *testing.T) {
	in := strings.Repeat("ă", MaxTTSLength+200)
	got := CleanForTTS(in)
	assert.Equal(t, MaxTTSLength, len([]rune(got)))
}

func TestGoogleTTS_Synthesize(t *testing.T) {
	audio := []byte("mp3-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "vi-VN", req.Voice.LanguageCode)
		assert.Equal(t, "vi-VN-Wavenet-C", req.Voice.Name)
		assert.Equal(t, "MP3", req.AudioConfig.AudioEncoding)
		assert.Equal(t, "xin chào", req.Input.Text)

		json.NewEncoder(w).Encode(synthesizeResponse{
			AudioContent: base64.StdEncoding.EncodeToString(audio),
		})
	}))
	defer srv.Close()

	tts, err := NewGoogleTTS("secret", srv.URL)
	require.NoError(t, err)

	got, err := tts.Synthesize(context.Background(), "xin chào", profile.VoiceFemale)
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestGoogleTTS_MaleVoiceDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "vi-VN-Wavenet-D", req.Voice.Name)
		json.NewEncoder(w).Encode(synthesizeResponse{AudioContent: ""})
	}))
	defer srv.Close()

	tts, err := NewGoogleTTS("k", srv.URL)
	require.NoError(t, err)

	_, err = tts.Synthesize(context.Background(), "chào em", profile.VoiceGender("unknown"))
	require.NoError(t, err)
}

func TestGoogleTTS_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tts, err := NewGoogleTTS("k", srv.URL)
	require.NoError(t, err)

	_, err = tts.Synthesize(context.Background(), "chào", profile.VoiceMale)
	assert.Error(t, err)
}

func TestGoogleTTS_RequiresKey(t *testing.T) {
	_, err := NewGoogleTTS("", "")
	assert.Error(t, err)
}

func TestGoogleTTS_EmptyAfterCleaning(t *testing.T) {
	tts, err := NewGoogleTTS("k", "http://unused.invalid")
	require.NoError(t, err)

	_, err = tts.Synthesize(context.Background(), "[GEN_IMAGE]", profile.VoiceMale)
	assert.Error(t, err)
}
