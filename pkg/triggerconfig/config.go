// Package triggerconfig loads and validates the configuration surface of a
// ScheduleTrigger from file, environment, and defaults, the way the rest of
// the project layers viper configuration.
package triggerconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/flowcraft/corepipe/engine/core"
	corecron "github.com/flowcraft/corepipe/engine/cron"
	"github.com/flowcraft/corepipe/engine/schedule"
	"github.com/flowcraft/corepipe/engine/workflow"
)

// Condition mirrors schedule.Condition in a form viper can unmarshal.
type Condition struct {
	Expression string `mapstructure:"expression" validate:"required"`
}

// Source is the unmarshal target for a trigger's raw configuration, before
// it is resolved into schedule.TriggerConfig.
type Source struct {
	Cron                   string        `mapstructure:"cron" validate:"required,cron"`
	WithSeconds            bool          `mapstructure:"withSeconds"`
	Timezone               string        `mapstructure:"timezone"`
	Inputs                 core.Input    `mapstructure:"inputs"`
	Labels                 []Label       `mapstructure:"labels"`
	LateMaximumDelay       time.Duration `mapstructure:"lateMaximumDelay"`
	RecoverMissedSchedules string        `mapstructure:"recoverMissedSchedules" validate:"omitempty,oneof=ALL LAST NONE"`
	Conditions             []Condition   `mapstructure:"conditions"`
	StopAfter              []string      `mapstructure:"stopAfter" validate:"dive,oneof=CREATED RUNNING PAUSED KILLED WARNING FAILED SUCCESS CANCELLED"`
}

// Label mirrors workflow.Label in a form viper can unmarshal.
type Label struct {
	Key   string `mapstructure:"key" validate:"required"`
	Value string `mapstructure:"value"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("cron", validateCron); err != nil {
		panic(fmt.Sprintf("failed to register cron validation: %v", err))
	}
	return v
}

// validateCron checks that the field parses as a cron expression or
// nickname, the same syntax engine/cron.ParseSpec accepts. It tries both
// the 5-field and 6-field (with seconds) forms, since the field-count
// choice lives on a sibling field this validator can't see.
func validateCron(fl validator.FieldLevel) bool {
	expr := fl.Field().String()
	if expr == "" {
		return true
	}
	if _, err := corecron.ParseSpec(expr, false, ""); err == nil {
		return true
	}
	_, err := corecron.ParseSpec(expr, true, "")
	return err == nil
}

// Load reads a trigger's configuration from configPath (optional) plus
// environment variables under envPrefix, applies the defaults from
// spec.md's configuration-surface table, validates the result, and resolves
// it into a schedule.TriggerConfig ready for schedule.NewScheduleTrigger.
func Load(configPath, envPrefix string) (schedule.TriggerConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return schedule.TriggerConfig{}, fmt.Errorf("failed to read trigger config: %w", err)
		}
	}

	var src Source
	if err := v.Unmarshal(&src); err != nil {
		return schedule.TriggerConfig{}, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}
	if err := validate.Struct(&src); err != nil {
		return schedule.TriggerConfig{}, fmt.Errorf("invalid trigger config: %w", err)
	}
	return resolve(src), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("withSeconds", false)
	v.SetDefault("recoverMissedSchedules", string(schedule.RecoverAll))
}

func resolve(src Source) schedule.TriggerConfig {
	labels := make(workflow.Labels, 0, len(src.Labels))
	for _, l := range src.Labels {
		labels = append(labels, workflow.Label{Key: l.Key, Value: l.Value})
	}
	conditions := make(schedule.ConditionSet, 0, len(src.Conditions))
	for _, c := range src.Conditions {
		conditions = append(conditions, schedule.Condition{Expression: c.Expression})
	}
	stopAfter := make([]core.StatusType, 0, len(src.StopAfter))
	for _, s := range src.StopAfter {
		stopAfter = append(stopAfter, core.StatusType(s))
	}
	policy := schedule.RecoveryPolicy(src.RecoverMissedSchedules)
	if policy == "" {
		policy = schedule.RecoverAll
	}
	return schedule.TriggerConfig{
		Cron: workflow.CronSpec{
			Expression:  src.Cron,
			WithSeconds: src.WithSeconds,
			Timezone:    src.Timezone,
		},
		Inputs:                 src.Inputs,
		Labels:                 labels,
		LateMaximumDelay:       src.LateMaximumDelay,
		HasLateMaximumDelay:    src.LateMaximumDelay > 0,
		RecoverMissedSchedules: policy,
		Conditions:             conditions,
		StopAfter:              stopAfter,
	}
}
