package queue

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validate checks everything before a single byte is written. Returns
// nil or a *ValidationError listing every problem found.
func validate(letter Letter, rcpt Recipient) error {
	var fields []string

	if strings.TrimSpace(rcpt.Email) == "" {
		fields = append(fields, "recipient email is empty")
	} else if !emailRe.MatchString(strings.TrimSpace(rcpt.Email)) {
		fields = append(fields, fmt.Sprintf("recipient email %q is not a valid address", rcpt.Email))
	}

	if strings.TrimSpace(letter.Subject) == "" {
		fields = append(fields, "subject is empty")
	}
	if strings.TrimSpace(letter.Body) == "" {
		fields = append(fields, "body is empty")
	}

	for _, att := range letter.Attachments {
		if _, err := os.Stat(att); err != nil {
			fields = append(fields, fmt.Sprintf("attachment %q is not readable", att))
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
