package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewZerologLoggerDev(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()

	log := NewZerologLogger("test")
	assert.NotNil(t, log)

	log.Debugf("debug %s", "message")
	log.Debugw("structured debug", map[string]any{"amps": 16, "plugged": true})
	log.Infof("info %s", "message")
	log.Warnf("warn %s", "message")
	log.Errorf("error %s", "message")
}

func TestNewZerologLoggerProduction(t *testing.T) {
	assert.NoError(t, os.Unsetenv("APP_ENV"))

	log := New("planner")
	assert.NotNil(t, log)
	log.Infof("cycle complete")
}

func TestNopLogger(t *testing.T) {
	var log Logger = NopLogger{}
	log.Debugf("ignored")
	log.Debugw("ignored", nil)
	log.Infof("ignored")
	log.Warnf("ignored")
	log.Errorf("ignored")
}
