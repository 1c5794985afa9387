package contentfilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chathub/sessionhub/internal/apperror"
)

func TestSanitize_EmptyRejected(t *testing.T) {
	_, err := Sanitize("   ")
	assert.Error(t, err)
	assert.Equal(t, apperror.InvalidInput, apperror.KindOf(err))
}

func TestSanitize_BoundaryLength(t *testing.T) {
	exact := strings.Repeat("abcdefghij", maxContentLength/10)
	_, err := Sanitize(exact)
	assert.NoError(t, err)

	tooLong := strings.Repeat("a", maxContentLength+1)
	_, err = Sanitize(tooLong)
	assert.Error(t, err)
	assert.Equal(t, apperror.InvalidInput, apperror.KindOf(err))
}

func TestSanitize_DangerousPattern(t *testing.T) {
	_, err := Sanitize("hello <script>alert(1)</script>")
	assert.Error(t, err)
	assert.Equal(t, apperror.InappropriateContent, apperror.KindOf(err))
}

func TestSanitize_SQLInjectionHeuristic(t *testing.T) {
	_, err := Sanitize("robert'); DROP TABLE students;--")
	assert.Error(t, err)
}

func TestSanitize_SpamRepeatedChars(t *testing.T) {
	_, err := Sanitize("aaaaaaaaaaaaaaaaaaaa")
	assert.Error(t, err)
	assert.Equal(t, apperror.InappropriateContent, apperror.KindOf(err))
}

func TestSanitize_SpamExcessiveCaps(t *testing.T) {
	_, err := Sanitize("THIS IS ALL CAPS SHOUTING AT YOU")
	assert.Error(t, err)
}

func TestSanitize_Toxicity(t *testing.T) {
	_, err := Sanitize("go die, i will kill you")
	assert.Error(t, err)
}

func TestSanitize_CleanContentPasses(t *testing.T) {
	out, err := Sanitize("hey, how's it going?")
	assert.NoError(t, err)
	assert.Equal(t, "hey, how's it going?", out)
}

func TestSanitize_EscapesHTML(t *testing.T) {
	out, err := Sanitize("5 < 10 and 10 > 5")
	assert.NoError(t, err)
	assert.NotContains(t, out, "<")
	assert.NotContains(t, out, ">")
}

func TestValidateRoomName(t *testing.T) {
	name, err := ValidateRoomName("General-Chat_1")
	assert.NoError(t, err)
	assert.Equal(t, "general-chat_1", name)

	_, err = ValidateRoomName("")
	assert.Error(t, err)

	_, err = ValidateRoomName("has spaces")
	assert.Error(t, err)

	_, err = ValidateRoomName(strings.Repeat("a", 51))
	assert.Error(t, err)
}
