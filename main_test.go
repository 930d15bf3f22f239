package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_LevelParsing(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, newLogger("debug").GetLevel())
	assert.Equal(t, zerolog.WarnLevel, newLogger("warn").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger("").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger("shouting").GetLevel())
}
