package mqtt

import (
	"fmt"
	"strings"
)

// maxTopicLength is the MQTT limit on topic names in bytes.
const maxTopicLength = 65535

// validateTopic checks a topic name. Wildcards are only accepted for
// subscriptions, and only as whole levels ("+" or a trailing "#").
func validateTopic(topic string, allowWildcards bool) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}

	if !allowWildcards {
		if strings.ContainsAny(topic, "+#") {
			return fmt.Errorf("%w: wildcards not allowed in %q", ErrInvalidTopic, topic)
		}
		return nil
	}

	levels := strings.Split(topic, "/")
	for i, level := range levels {
		switch {
		case level == "#" && i != len(levels)-1:
			return fmt.Errorf("%w: '#' must be the last level in %q", ErrInvalidTopic, topic)
		case level != "+" && level != "#" && strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: wildcard must occupy a whole level in %q", ErrInvalidTopic, topic)
		}
	}
	return nil
}
