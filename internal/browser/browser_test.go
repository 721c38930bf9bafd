package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsdl/pkg/auth"
)

func TestCookieParams(t *testing.T) {
	account := &auth.Account{Username: "me", Cookie: "a1=abc; webId=def; web_session=040069"}

	params, err := CookieParams(account, CookieDomain)
	require.NoError(t, err)
	require.Len(t, params, 3)

	assert.Equal(t, "web_session", params[2].Name)
	assert.Equal(t, "040069", params[2].Value)
	for _, p := range params {
		assert.Equal(t, ".xiaohongshu.com", p.Domain)
		assert.Equal(t, "/", p.Path)
		assert.True(t, p.Secure)
	}
}

func TestCookieParamsInvalid(t *testing.T) {
	_, err := CookieParams(&auth.Account{Cookie: "=broken"}, CookieDomain)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
