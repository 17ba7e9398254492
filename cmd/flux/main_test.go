package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggest(t *testing.T) {
	assert.Equal(t, "deploy", suggest("deplyo"))
	assert.Equal(t, "status", suggest("stats"))
	assert.Equal(t, "list", suggest("lst"))
	assert.Empty(t, suggest("kubernetes"))
}

func TestRunCommandUnknown(t *testing.T) {
	err := runCommand("restrat", nil, configForTest(), infoForTest())
	assert.ErrorContains(t, err, "did you mean restart?")
}
