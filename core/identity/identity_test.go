package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemberKey(t *testing.T) {
	n := NewNormalizer("corp.cn")

	tests := []struct {
		name     string
		username string
		email    string
		userID   string
		want     string
	}{
		{"corporate name email", "", "zhang.san@corp.cn", "", "zhang.san"},
		{"corporate email case folds", "", "Zhang.San@Corp.CN", "", "zhang.san"},
		{"corporate numeric email becomes partner", "", "801495@corp.cn", "", "partner-801495"},
		{"corporate email wins over username", "someuser", "li.si@corp.cn", "42", "li.si"},
		{"external email falls back to username", "bobsmith", "bob@external.com", "", "bobsmith"},
		{"key-shaped username kept", "wang.wu", "", "", "wang.wu"},
		{"partner-shaped username kept", "Partner-12", "", "", "partner-12"},
		{"no username falls back to email", "", "bob@external.com", "9", "bob@external.com"},
		{"only user id", "", "", "12345", "12345"},
		{"everything empty", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.MemberKey(tt.username, tt.email, tt.userID))
		})
	}
}

func TestMemberKeyDeterministic(t *testing.T) {
	n := NewNormalizer("corp.cn")
	first := n.MemberKey("u", "zhang.san@corp.cn", "1")
	for range 10 {
		assert.Equal(t, first, n.MemberKey("u", "zhang.san@corp.cn", "1"))
	}
}

func TestIsCorpEmail(t *testing.T) {
	n := NewNormalizer("corp.cn")
	assert.True(t, n.IsCorpEmail("zhang.san@corp.cn"))
	assert.True(t, n.IsCorpEmail("801495@corp.cn"))
	assert.False(t, n.IsCorpEmail("zhang.san@other.cn"))
	assert.False(t, n.IsCorpEmail("zhang_san@corp.cn"))
	assert.False(t, n.IsCorpEmail(""))
}

func TestOneID(t *testing.T) {
	assert.Equal(t, "E100", OneID("E100", "7", "zhang.san"))
	assert.Equal(t, "uid:7", OneID("", "7", "zhang.san"))
	assert.Equal(t, "mk:zhang.san", OneID(" ", "", "zhang.san"))
}

func FuzzMemberKey(f *testing.F) {
	f.Add("user", "a.b@corp.cn", "1")
	f.Add("", "99@corp.cn", "")
	f.Add("Partner-5", "", "")
	n := NewNormalizer("corp.cn")
	f.Fuzz(func(t *testing.T, username, email, userID string) {
		k1 := n.MemberKey(username, email, userID)
		k2 := n.MemberKey(username, email, userID)
		if k1 != k2 {
			t.Fatalf("non-deterministic key: %q vs %q", k1, k2)
		}
	})
}
