package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "5511999999999", OnlyDigits("+55 (11) 99999-9999"))
	assert.Equal(t, "", OnlyDigits("status@broadcast"))
}

func TestNormalizeForSend(t *testing.T) {
	assert.Equal(t, "5511999999999", NormalizeForSend("11999999999", "55"))
	assert.Equal(t, "551133334444", NormalizeForSend("1133334444", "55"))
	assert.Equal(t, "5521988888888", NormalizeForSend("5521988888888", "55"))

	// Known limitation: a 10-digit US number is treated as national and gets the prefix.
	assert.Equal(t, "552025550143", NormalizeForSend("(202) 555-0143", "55"))
}

func TestIsGroupJID(t *testing.T) {
	assert.True(t, IsGroupJID("120363025246125888@g.us"))
	assert.False(t, IsGroupJID("5511999999999@s.whatsapp.net"))
}

func TestVerifyHubSignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	sig, err := GetMessageDigestOrSignature(body, []byte("app-secret"))
	require.NoError(t, err)

	assert.True(t, VerifyHubSignature(body, "sha256="+sig, "app-secret"))
	assert.False(t, VerifyHubSignature(body, "sha256="+sig, "other-secret"))
	assert.False(t, VerifyHubSignature(body, sig, "app-secret"))
	assert.False(t, VerifyHubSignature(body, "", "app-secret"))
}

func TestLocalPathForPublicURL(t *testing.T) {
	statics := filepath.Join("var", "statics")

	p, ok := LocalPathForPublicURL("https://relay.example.com/statics/media/a%20b.jpg?x=1", "https://relay.example.com", "", statics)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(statics, "media", "a b.jpg"), p)

	_, ok = LocalPathForPublicURL("https://cdn.example.com/statics/media/a.jpg", "https://relay.example.com", "", statics)
	assert.False(t, ok)

	p, ok = LocalPathForPublicURL("https://relay.example.com/statics/../../etc/passwd", "https://relay.example.com", "", statics)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(statics, "etc", "passwd"), p)
}

func TestPublicURLForStatic(t *testing.T) {
	u, err := PublicURLForStatic("https://relay.example.com/", "/relay", "statics", filepath.Join("statics", "media", "f.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example.com/relay/statics/media/f.png", u)

	_, err = PublicURLForStatic("https://relay.example.com", "", "statics", filepath.Join("other", "f.png"))
	assert.Error(t, err)
}
