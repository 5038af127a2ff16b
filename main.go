package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kadavilrahul/email-automation/negotiator"
	"github.com/kadavilrahul/email-automation/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gitlab.com/NebulousLabs/errors"
)

const (
	// defaultIncomingPort is the standard implicit TLS IMAP port.
	defaultIncomingPort = 993

	// defaultOutgoingPort is the standard implicit TLS submission port.
	defaultOutgoingPort = 465
)

func main() {
	// load env
	_ = godotenv.Load()

	// create a context that is cancelled on exit signals so an in-flight
	// attempt gets aborted instead of stalling shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// initialize a logger
	logger := logrus.New()

	// configure log level
	logLevel, err := logrus.ParseLevel(os.Getenv("EMAIL_TEST_LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// configure log formatter
	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	formatter.FullTimestamp = true
	logger.SetFormatter(formatter)

	// fetch the attempt timeout, zero selects the default
	timeout := loadAttemptTimeout()

	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		logger.Infof("Authentication token found: %v", utils.MaskSecret(token))
	}

	// test the incoming direction
	logger.Info("Testing IMAP connection (incoming mail)...")
	incomingReport := testIncoming(ctx, logger, timeout)
	fmt.Println(incomingReport.Render())

	// test the outgoing direction, both directions are always attempted so
	// the report gives complete diagnosis in one run
	logger.Info("Testing SMTP connection (outgoing mail)...")
	outgoingReport := testOutgoing(ctx, logger, timeout)
	fmt.Println(outgoingReport.Render())

	// print the summary
	fmt.Println("=== Connection Test Summary ===")
	fmt.Printf("IMAP Connection: %v\n", verdict(incomingReport.Succeeded))
	fmt.Printf("SMTP Connection: %v\n", verdict(outgoingReport.Succeeded))
	if incomingReport.Succeeded && outgoingReport.Succeeded {
		fmt.Println("\nAll email connections are working correctly!")
		return
	}
	fmt.Println("\nSome email connections failed. Please check your configuration.")
	os.Exit(1)
}

// testIncoming negotiates the incoming direction and verifies the winning
// session by listing mailboxes.
func testIncoming(ctx context.Context, logger *logrus.Logger, timeout time.Duration) negotiator.NegotiationReport {
	params, err := loadIncomingParameters()
	if err != nil {
		return negotiator.NegotiationReport{Direction: negotiator.Incoming, Err: err}
	}

	executor := negotiator.NewIncomingExecutor(logger, timeout)
	report := negotiator.NewNegotiator(negotiator.Incoming, executor, logger).Negotiate(ctx, params)

	if session, ok := report.Session().(*negotiator.IncomingSession); ok {
		verification := negotiator.VerifyIncoming(session)
		report.Verification = &verification
		if err := session.Close(); err != nil {
			logger.Errorf("Failed to close IMAP session, err: %v", err)
		}
	}
	return report
}

// testOutgoing negotiates the outgoing direction and, only after explicit
// interactive confirmation, verifies the winning session by sending a probe
// message.
func testOutgoing(ctx context.Context, logger *logrus.Logger, timeout time.Duration) negotiator.NegotiationReport {
	params, sender, err := loadOutgoingParameters()
	if err != nil {
		return negotiator.NegotiationReport{Direction: negotiator.Outgoing, Err: err}
	}

	executor := negotiator.NewOutgoingExecutor(logger, timeout)
	report := negotiator.NewNegotiator(negotiator.Outgoing, executor, logger).Negotiate(ctx, params)

	if session, ok := report.Session().(*negotiator.OutgoingSession); ok {
		if recipient := confirmProbeSend(); recipient != "" {
			verification := negotiator.VerifyOutgoing(session, sender, recipient, report.WinningStrategy)
			report.Verification = &verification
		}
		if err := session.Close(); err != nil {
			logger.Errorf("Failed to close SMTP session, err: %v", err)
		}
	}
	return report
}

// confirmProbeSend asks the user whether a probe message should be sent and
// to whom. Sending is user-visible, it must never happen unattended, so a
// non-interactive stdin skips the probe entirely.
func confirmProbeSend() string {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return ""
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Do you want to send a test email? (y/n): ")
	answer, err := reader.ReadString('\n')
	if err != nil || strings.ToLower(strings.TrimSpace(answer)) != "y" {
		return ""
	}

	recipient := strings.TrimSpace(os.Getenv("TEST_EMAIL_RECIPIENT"))
	if recipient != "" {
		return recipient
	}
	fmt.Print("Enter recipient email address: ")
	recipient, err = reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(recipient)
}

// loadIncomingParameters loads the connection parameters of the incoming
// direction from the environment. An absent token simply disables the token
// strategies, it is not an error.
func loadIncomingParameters() (negotiator.ConnectionParameters, error) {
	port, err := lookupPort("TCP_PORT_INCOMING", defaultIncomingPort)
	if err != nil {
		return negotiator.ConnectionParameters{}, err
	}
	return negotiator.ConnectionParameters{
		Host:     utils.SanitizeHost(os.Getenv("SERVER_NAME_INCOMING")),
		Port:     port,
		Username: strings.TrimSpace(os.Getenv("USERNAME_INCOMING")),
		Password: os.Getenv("PASSWORD_INCOMING"),
		Token:    os.Getenv("AUTH_TOKEN"),
	}, nil
}

// loadOutgoingParameters loads the connection parameters of the outgoing
// direction from the environment, along with the sender address used for
// the probe message.
func loadOutgoingParameters() (negotiator.ConnectionParameters, string, error) {
	port, err := lookupPort("SMTP_PORT", defaultOutgoingPort)
	if err != nil {
		return negotiator.ConnectionParameters{}, "", err
	}
	username := strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	sender := strings.TrimSpace(os.Getenv("SENDER_EMAIL"))
	if sender == "" {
		sender = username
	}
	return negotiator.ConnectionParameters{
		Host:     utils.SanitizeHost(os.Getenv("SMTP_SERVER")),
		Port:     port,
		Username: username,
		Password: os.Getenv("SMTP_PASSWORD"),
		Token:    os.Getenv("SMTP_AUTH_TOKEN"),
	}, sender, nil
}

// loadAttemptTimeout reads the optional per-attempt timeout from the
// environment, returning zero when it is absent or malformed so the
// executors fall back to their default.
func loadAttemptTimeout() time.Duration {
	value, ok := os.LookupEnv("EMAIL_TEST_TIMEOUT_SECONDS")
	if !ok {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// lookupPort reads a port from the environment, falling back to the given
// default when the variable is not set.
func lookupPort(name string, fallback int) (int, error) {
	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.AddContext(err, fmt.Sprintf("invalid port value for env var %v", name))
	}
	return port, nil
}

// verdict renders a direction outcome for the summary block.
func verdict(succeeded bool) string {
	if succeeded {
		return "SUCCESS"
	}
	return "FAILED"
}
