package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"oebrowse/errors"
)

func TestValidateRequired(t *testing.T) {
	assert.NoError(t, ValidateRequired("demo", "数据库"))
	err := ValidateRequired("  ", "数据库")
	assert.True(t, errors.IsPrecondition(err))
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort(8070))
	assert.Error(t, ValidatePort(0))
	assert.Error(t, ValidatePort(70000))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(3, "id"))
	assert.True(t, errors.IsPrecondition(ValidateID(0, "id")))
	assert.True(t, errors.IsPrecondition(ValidateID(-2, "id")))
}

func TestValidateEnum(t *testing.T) {
	assert.NoError(t, ValidateEnum("msgpack", "codec", []string{"pickle", "msgpack"}))
	err := ValidateEnum("json", "codec", []string{"pickle", "msgpack"})
	assert.True(t, errors.IsPrecondition(err))
	assert.Contains(t, err.Error(), "pickle")
}

func TestValidateDomain(t *testing.T) {
	for _, d := range []string{"object", "wizard", "db", "common"} {
		assert.NoError(t, ValidateDomain(d))
	}
	assert.True(t, errors.IsPrecondition(ValidateDomain("report")))
}

func TestValidateCredentials(t *testing.T) {
	assert.NoError(t, ValidateCredentials(1, "admin"))
	assert.True(t, errors.IsPrecondition(ValidateCredentials(0, "admin")))
	assert.True(t, errors.IsPrecondition(ValidateCredentials(1, "")))
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("localhost", 8070))
	err := ValidateAddress("localhost", -1)
	assert.True(t, errors.IsPrecondition(err))
	assert.Contains(t, err.Error(), "localhost:-1")
}
