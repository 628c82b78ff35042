package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups this app's secrets in the OS keychain.
	KeyringService = "jobmatch"

	evaluatorAccount = "jobmatch:evaluator:api_key"
)

// GetEvaluatorAPIKey reads the evaluator key from the keychain. It is
// never stored in config.yml.
func GetEvaluatorAPIKey() (string, error) {
	key, err := keyring.Get(KeyringService, evaluatorAccount)
	if err != nil || strings.TrimSpace(key) == "" {
		return "", errors.New("evaluator API key not found (set it via the secrets endpoint)")
	}
	return key, nil
}

func SetEvaluatorAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("evaluator API key is empty")
	}
	return keyring.Set(KeyringService, evaluatorAccount, key)
}

func DeleteEvaluatorAPIKey() error {
	return keyring.Delete(KeyringService, evaluatorAccount)
}

// GetSMTPPassword reads the outgoing-mail password for the given
// account. The sender itself lives outside this engine; we only keep
// its secret safe.
func GetSMTPPassword(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("smtp account name is empty")
	}
	pw, err := keyring.Get(KeyringService, smtpAccount(account))
	if err != nil || strings.TrimSpace(pw) == "" {
		return "", errors.New("SMTP password not found (set it in keychain)")
	}
	return pw, nil
}

func SetSMTPPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("smtp account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, smtpAccount(account), password)
}

func smtpAccount(account string) string {
	return fmt.Sprintf("jobmatch:smtp:%s", account)
}
