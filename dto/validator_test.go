package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codeHolder struct {
	Code string `validate:"omitempty,reflink_code"`
}

func TestReflinkCodeValidation(t *testing.T) {
	valid := []string{
		"abc",
		"friend-pass",
		"VIP_2026",
		strings.Repeat("x", 50),
	}
	for _, code := range valid {
		assert.NoError(t, GetValidator().Struct(codeHolder{Code: code}), "code %q should pass", code)
	}

	invalid := []string{
		"ab",                      // too short
		strings.Repeat("x", 51),   // too long
		"has space",
		"semi;colon",
		"dot.dot",
	}
	for _, code := range invalid {
		assert.Error(t, GetValidator().Struct(codeHolder{Code: code}), "code %q should fail", code)
	}

	// omitempty: an absent code is not an error.
	assert.NoError(t, GetValidator().Struct(codeHolder{}))
}

func TestFormatValidationErrors(t *testing.T) {
	type form struct {
		Email string `validate:"required,email"`
		Tier  string `validate:"required,oneof=BASIC STANDARD PREMIUM UNLIMITED"`
		Code  string `validate:"reflink_code"`
	}

	err := GetValidator().Struct(form{Email: "not-an-email", Tier: "GOLD", Code: "!"})
	require.Error(t, err)

	errors := FormatValidationErrors(err)
	require.Len(t, errors, 3)

	byField := map[string]string{}
	for _, fieldError := range errors {
		byField[fieldError.Field] = fieldError.Message
	}
	assert.Equal(t, "Invalid email format", byField["Email"])
	assert.Contains(t, byField["Tier"], "must be one of")
	assert.Contains(t, byField["Code"], "3-50 characters")
}

func TestCreateValidationErrorResponse(t *testing.T) {
	type form struct {
		Query string `validate:"required"`
	}

	err := GetValidator().Struct(form{})
	require.Error(t, err)

	resp := CreateValidationErrorResponse(err)
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "Validation failed", resp.Message)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Query is required", resp.Errors[0].Message)
}
