package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newTestViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, value := range overrides {
		v.Set(key, value)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg := fromViper(newTestViper(nil))

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.True(t, cfg.Timetable.MultiAssignment())
	assert.True(t, cfg.Timetable.EnforceGrade)
	assert.False(t, cfg.Timetable.EnforceCurriculum)
	assert.Equal(t, PersistBackendPostgres, cfg.Timetable.PersistBackend)
	assert.Equal(t, 30*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, 1000, cfg.Generator.MaxAttempts)
	assert.Equal(t, 2, cfg.Generator.MaxSubjectPeriodsDay)
}

func TestUnknownModesFallBack(t *testing.T) {
	cfg := fromViper(newTestViper(map[string]any{
		"TIMETABLE_ASSIGNMENT_MODE": "triple",
		"TIMETABLE_PERSIST_BACKEND": "s3",
		"GENERATOR_TIMEOUT":         "soon",
	}))

	assert.Equal(t, AssignmentModeMulti, cfg.Timetable.AssignmentMode)
	assert.Equal(t, PersistBackendPostgres, cfg.Timetable.PersistBackend)
	assert.Equal(t, 30*time.Second, cfg.Generator.Timeout)
}

func TestSingleModeAndOrigins(t *testing.T) {
	cfg := fromViper(newTestViper(map[string]any{
		"TIMETABLE_ASSIGNMENT_MODE": "SINGLE",
		"TIMETABLE_PERSIST_BACKEND": "redis",
		"ALLOWED_ORIGINS":           "http://a.test, ,http://b.test",
	}))

	assert.False(t, cfg.Timetable.MultiAssignment())
	assert.Equal(t, PersistBackendRedis, cfg.Timetable.PersistBackend)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}
