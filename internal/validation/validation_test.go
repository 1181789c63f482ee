package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@x.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Ada <a@x.com>"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 250)+"@x.com"))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Ada"))
	assert.NoError(t, ValidateName(strings.Repeat("é", 100)))
	assert.Error(t, ValidateName("   "))
	assert.Error(t, ValidateName(strings.Repeat("a", 101)))
	assert.Error(t, ValidateName("Ada\x00"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("secret1"))
	assert.Error(t, ValidatePassword("abc12"))
	assert.Error(t, ValidatePassword(strings.Repeat("a", 73)))
	assert.Error(t, ValidatePassword("123456"))
	assert.Error(t, ValidatePasswordConfirmation("secret1", "secret2"))
}

func TestValidatePost(t *testing.T) {
	assert.NoError(t, ValidatePostTitle("T"))
	assert.Error(t, ValidatePostTitle("   "))
	assert.Error(t, ValidatePostContent(""))
	assert.NoError(t, ValidatePostType("discussion"))
	assert.Error(t, ValidatePostType("rant"))
}

func TestValidateRoleAndPhone(t *testing.T) {
	assert.NoError(t, ValidateRole("student"))
	assert.NoError(t, ValidateRole("lecturer"))
	assert.Error(t, ValidateRole("admin"))
	assert.NoError(t, ValidatePhone("+49 (30) 123-456"))
	assert.Error(t, ValidatePhone("call me"))
}

func TestValidateFile(t *testing.T) {
	pdf := []byte("%PDF-1.7\n")
	assert.NoError(t, ValidateFile("notes.pdf", 1024, pdf, DocumentConstraints))
	assert.Error(t, ValidateFile("notes.exe", 1024, pdf, DocumentConstraints))
	assert.Error(t, ValidateFile("notes.pdf", 60<<20, pdf, DocumentConstraints))
	assert.NoError(t, ValidateFile("readme.txt", 5, []byte("hello"), ImageConstraints, DocumentConstraints))
	assert.Error(t, ValidateFileName("../etc/passwd"))
}
