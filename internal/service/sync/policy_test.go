package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyAllowsAdmins(t *testing.T) {
	p := NewSenderPolicy([]string{"Admin@Example.com", " other@example.com "}, "", nil)

	assert.True(t, p.Allows("admin@example.com"))
	assert.True(t, p.Allows("OTHER@EXAMPLE.COM"))
	assert.False(t, p.Allows("stranger@example.com"))
}

func TestPolicyAllowsSuperAccount(t *testing.T) {
	p := NewSenderPolicy(nil, "Inbox@School.edu", nil)

	assert.True(t, p.Allows("inbox@school.edu"))
	assert.False(t, p.Allows("someone@school.edu"))
}

func TestPolicyAllowsDomainSuffixes(t *testing.T) {
	p := NewSenderPolicy(nil, "", []string{"school.edu", "@dept.school.edu"})

	assert.True(t, p.Allows("teacher@school.edu"))
	assert.True(t, p.Allows("clerk@dept.school.edu"))
	assert.False(t, p.Allows("spammer@evilschool.edu.attacker.com"))
	assert.False(t, p.Allows("spammer@notschool.com"))
}

func TestPolicyRejectsEmptySender(t *testing.T) {
	p := NewSenderPolicy([]string{"admin@example.com"}, "super@example.com", []string{"example.com"})

	assert.False(t, p.Allows(""))
	assert.False(t, p.Allows("   "))
}

func TestPolicyIgnoresBlankEntries(t *testing.T) {
	p := NewSenderPolicy([]string{"", "  "}, "", []string{"", "@"})

	assert.False(t, p.Allows("anyone@anywhere.com"))
}
