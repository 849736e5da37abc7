package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCourseKey is returned when a string cannot be parsed as a
// course-run key.
var ErrInvalidCourseKey = errors.New("invalid course key")

const courseKeyPrefix = "course-v1:"

// CourseKey identifies a single course run, e.g. "course-v1:edX+DemoX+2024".
type CourseKey struct {
	Org    string
	Course string
	Run    string
}

// ParseCourseKey parses the "course-v1:Org+Course+Run" form and the legacy
// "Org/Course/Run" form used by pre-split course ids.
func ParseCourseKey(raw string) (CourseKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CourseKey{}, ErrInvalidCourseKey
	}

	var parts []string
	if strings.HasPrefix(raw, courseKeyPrefix) {
		parts = strings.Split(strings.TrimPrefix(raw, courseKeyPrefix), "+")
	} else if strings.Contains(raw, "/") {
		parts = strings.Split(raw, "/")
	} else {
		return CourseKey{}, ErrInvalidCourseKey
	}

	if len(parts) != 3 {
		return CourseKey{}, ErrInvalidCourseKey
	}
	for _, part := range parts {
		if part == "" || strings.ContainsAny(part, "+/ \t") {
			return CourseKey{}, ErrInvalidCourseKey
		}
	}

	return CourseKey{Org: parts[0], Course: parts[1], Run: parts[2]}, nil
}

// String renders the key in its canonical "course-v1:" form.
func (k CourseKey) String() string {
	return fmt.Sprintf("%s%s+%s+%s", courseKeyPrefix, k.Org, k.Course, k.Run)
}
