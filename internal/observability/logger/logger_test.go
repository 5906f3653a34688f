package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSamplingKeepsWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(sampled(Config{
		SamplingInitial:    1,
		SamplingThereafter: 1000,
		SamplingWindow:     time.Minute,
	})(core))

	for i := 0; i < 3; i++ {
		log.Info("scheduler.job.start")
		log.Warn("occupancy.drift")
	}

	assert.Equal(t, 1, logs.FilterMessage("scheduler.job.start").Len())
	assert.Equal(t, 3, logs.FilterMessage("occupancy.drift").Len())
}

func TestEncoding(t *testing.T) {
	assert.Equal(t, "json", encoding("", false))
	assert.Equal(t, "console", encoding("", true))
	assert.Equal(t, "json", encoding("JSON", true))
	assert.Equal(t, "console", encoding(" console ", false))
}
