package main

import (
	"os"
	"strings"
	"testing"
	"time"

	"gitlab.com/NebulousLabs/errors"
)

// TestLoadIncomingParameters is a unit test that covers the
// loadIncomingParameters helper.
func TestLoadIncomingParameters(t *testing.T) {
	variables := []string{
		"SERVER_NAME_INCOMING",
		"TCP_PORT_INCOMING",
		"USERNAME_INCOMING",
		"PASSWORD_INCOMING",
		"AUTH_TOKEN",
	}

	// create a function to restore the environment
	restoreEnvFn := restoreEnv(variables)
	defer func() {
		err := restoreEnvFn()
		if err != nil {
			t.Error(err)
		}
	}()

	// set a full environment, host with the untidy decoration users paste in
	os.Setenv("SERVER_NAME_INCOMING", " https://imap.example.com/ ")
	os.Setenv("TCP_PORT_INCOMING", "143")
	os.Setenv("USERNAME_INCOMING", " user@example.com ")
	os.Setenv("PASSWORD_INCOMING", "secret")
	os.Setenv("AUTH_TOKEN", "sometoken")

	// load the parameters and assert the output (happy case)
	params, err := loadIncomingParameters()
	if err != nil {
		t.Fatal(err)
	}
	if params.Host != "imap.example.com" || params.Port != 143 {
		t.Fatal("unexpected", params)
	}
	if params.Username != "user@example.com" || params.Password != "secret" {
		t.Fatal("unexpected", params)
	}
	if params.Token != "sometoken" || !params.HasToken() {
		t.Fatal("unexpected", params)
	}

	// unset the port and assert the default is applied
	err = os.Unsetenv("TCP_PORT_INCOMING")
	if err != nil {
		t.Fatal(err)
	}
	params, err = loadIncomingParameters()
	if err != nil {
		t.Fatal(err)
	}
	if params.Port != defaultIncomingPort {
		t.Fatal("unexpected", params.Port)
	}

	// unset the token and assert the token strategies get disabled
	err = os.Unsetenv("AUTH_TOKEN")
	if err != nil {
		t.Fatal(err)
	}
	params, err = loadIncomingParameters()
	if err != nil {
		t.Fatal(err)
	}
	if params.HasToken() {
		t.Fatal("unexpected", params)
	}

	// set a malformed port and assert the helper indicates what env
	// variable is invalid
	os.Setenv("TCP_PORT_INCOMING", "not-a-port")
	_, err = loadIncomingParameters()
	if err == nil || !strings.Contains(err.Error(), "invalid port value for env var TCP_PORT_INCOMING") {
		t.Fatal("unexpected outcome", err)
	}
}

// TestLoadOutgoingParameters is a unit test that covers the
// loadOutgoingParameters helper.
func TestLoadOutgoingParameters(t *testing.T) {
	variables := []string{
		"SMTP_SERVER",
		"SMTP_PORT",
		"SMTP_USERNAME",
		"SMTP_PASSWORD",
		"SMTP_AUTH_TOKEN",
		"SENDER_EMAIL",
	}

	// create a function to restore the environment
	restoreEnvFn := restoreEnv(variables)
	defer func() {
		err := restoreEnvFn()
		if err != nil {
			t.Error(err)
		}
	}()

	// set a full environment
	os.Setenv("SMTP_SERVER", "smtp://smtp.example.com")
	os.Setenv("SMTP_PORT", "2525")
	os.Setenv("SMTP_USERNAME", "user@example.com")
	os.Setenv("SMTP_PASSWORD", "secret")
	os.Setenv("SMTP_AUTH_TOKEN", "sometoken")
	os.Setenv("SENDER_EMAIL", "sender@example.com")

	// load the parameters and assert the output (happy case)
	params, sender, err := loadOutgoingParameters()
	if err != nil {
		t.Fatal(err)
	}
	if params.Host != "smtp.example.com" || params.Port != 2525 {
		t.Fatal("unexpected", params)
	}
	if params.Username != "user@example.com" || params.Password != "secret" {
		t.Fatal("unexpected", params)
	}
	if params.Token != "sometoken" {
		t.Fatal("unexpected", params)
	}
	if sender != "sender@example.com" {
		t.Fatal("unexpected", sender)
	}

	// unset the sender and assert it falls back to the username
	err = os.Unsetenv("SENDER_EMAIL")
	if err != nil {
		t.Fatal(err)
	}
	_, sender, err = loadOutgoingParameters()
	if err != nil {
		t.Fatal(err)
	}
	if sender != "user@example.com" {
		t.Fatal("unexpected", sender)
	}

	// unset the port and assert the default is applied
	err = os.Unsetenv("SMTP_PORT")
	if err != nil {
		t.Fatal(err)
	}
	params, _, err = loadOutgoingParameters()
	if err != nil {
		t.Fatal(err)
	}
	if params.Port != defaultOutgoingPort {
		t.Fatal("unexpected", params.Port)
	}
}

// TestLoadAttemptTimeout is a unit test that covers the loadAttemptTimeout
// helper.
func TestLoadAttemptTimeout(t *testing.T) {
	variables := []string{"EMAIL_TEST_TIMEOUT_SECONDS"}

	// create a function to restore the environment
	restoreEnvFn := restoreEnv(variables)
	defer func() {
		err := restoreEnvFn()
		if err != nil {
			t.Error(err)
		}
	}()

	// assert absence selects the default
	err := os.Unsetenv("EMAIL_TEST_TIMEOUT_SECONDS")
	if err != nil {
		t.Fatal(err)
	}
	if timeout := loadAttemptTimeout(); timeout != 0 {
		t.Fatal("unexpected", timeout)
	}

	// assert a valid value is applied
	os.Setenv("EMAIL_TEST_TIMEOUT_SECONDS", "30")
	if timeout := loadAttemptTimeout(); timeout != 30*time.Second {
		t.Fatal("unexpected", timeout)
	}

	// assert malformed and non-positive values select the default
	for _, value := range []string{"abc", "0", "-5"} {
		os.Setenv("EMAIL_TEST_TIMEOUT_SECONDS", value)
		if timeout := loadAttemptTimeout(); timeout != 0 {
			t.Fatal("unexpected", value, timeout)
		}
	}
}

// TestVerdict is a small unit test that covers the verdict helper.
func TestVerdict(t *testing.T) {
	if verdict(true) != "SUCCESS" || verdict(false) != "FAILED" {
		t.Fatal("unexpected")
	}
}

// restoreEnv snapshots the given environment variables and returns a
// function that, when executed, restores them to the snapshot. Variables
// that were unset at snapshot time are unset again.
func restoreEnv(variables []string) func() error {
	type snapshot struct {
		value  string
		exists bool
	}
	backup := make(map[string]snapshot)
	for _, variable := range variables {
		value, exists := os.LookupEnv(variable)
		backup[variable] = snapshot{value: value, exists: exists}
	}
	return func() error {
		var errs []error
		for _, variable := range variables {
			original := backup[variable]
			if !original.exists {
				errs = append(errs, os.Unsetenv(variable))
				continue
			}
			errs = append(errs, os.Setenv(variable, original.value))
		}
		return errors.Compose(errs...)
	}
}
