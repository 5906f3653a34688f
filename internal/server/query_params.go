package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/clock"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseSnowflakeID(field, value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		return 0, newValidationError(field, "invalid_id", field+" is not a valid id")
	}
	return parsed, nil
}

func parseOptionalSnowflakeID(field, value string) (snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return parseSnowflakeID(field, value)
}

// parseOptionalDate accepts YYYY-MM-DD or RFC3339.
func parseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := clock.ParseDate(*value)
	if err != nil {
		return nil, newValidationError(field, "invalid_date", field+" must be YYYY-MM-DD")
	}
	return &parsed, nil
}

func parseRequiredDate(field, value string) (time.Time, error) {
	parsed, err := parseOptionalDate(field, &value)
	if err != nil {
		return time.Time{}, err
	}
	if parsed == nil {
		return time.Time{}, newValidationError(field, "required", field+" is required")
	}
	return *parsed, nil
}

// parseOptionalMonth accepts YYYY-MM or any date inside the month.
func parseOptionalMonth(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := clock.ParseMonth(*value)
	if err != nil {
		return nil, newValidationError(field, "invalid_month", field+" must be YYYY-MM")
	}
	return &parsed, nil
}

func parseRequiredMonth(field, value string) (time.Time, error) {
	parsed, err := parseOptionalMonth(field, &value)
	if err != nil {
		return time.Time{}, err
	}
	if parsed == nil {
		return time.Time{}, newValidationError(field, "required", field+" is required")
	}
	return *parsed, nil
}

func parseOptionalTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	parsed, err := clock.ParseDate(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
