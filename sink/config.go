package sink

import (
	"fmt"
	"regexp"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
)

// contentTypes maps the recognized frame extensions to the content type sent
// with each object. The extension is trusted to match the encoded payload;
// it is not validated against the payload bytes.
var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
}

var regionPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)+$`)

// SessionConfig is the immutable per-session configuration. It is validated
// once at startup and shared read-only by every component.
type SessionConfig struct {
	Bucket    string
	Region    string
	KeyPrefix string
	Extension string

	AccessKeyID     string
	SecretAccessKey string
	CredentialsFile string

	// Concurrency bounds the number of in-flight uploads. Zero means the
	// pool default.
	Concurrency int

	// RejectWhileProvisioning makes Push return FlowNotReady while the
	// bucket check is still running, instead of blocking until the verdict.
	RejectWhileProvisioning bool
}

// Validate ...
func (c SessionConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket must not be empty")
	}
	if c.Region == "" {
		return fmt.Errorf("region must not be empty")
	}
	if !regionPattern.MatchString(c.Region) {
		return fmt.Errorf("region %q is not a valid region identifier", c.Region)
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("key prefix must not be empty")
	}
	if _, ok := contentTypes[c.Extension]; !ok {
		return fmt.Errorf("extension %q is not a recognized image format", c.Extension)
	}
	return nil
}

func (c SessionConfig) contentType() string {
	return contentTypes[c.Extension]
}

// Input is the environment-variable surface of the sink, for hosts that
// configure it through properties rather than constructing a SessionConfig.
type Input struct {
	Bucket    string `env:"bucket,required"`
	Region    string `env:"region,required"`
	Key       string `env:"key,required"`
	Extension string `env:"extension"`

	AWSAccessKeyID           stepconf.Secret `env:"aws_access_key_id"`
	AWSSecretAccessKey       stepconf.Secret `env:"aws_secret_access_key"`
	AWSSharedCredentialsFile string          `env:"aws_shared_credentials_file"`

	Concurrency             int  `env:"concurrency"`
	RejectWhileProvisioning bool `env:"reject_while_provisioning"`
}

// ParseConfig reads the sink configuration from the environment and
// validates it. Parse or validation failures are startup-fatal: the session
// never reaches streaming.
func ParseConfig(parser stepconf.InputParser) (SessionConfig, error) {
	var input Input
	if err := parser.Parse(&input); err != nil {
		return SessionConfig{}, fmt.Errorf("parse inputs: %w", err)
	}

	config := SessionConfig{
		Bucket:                  input.Bucket,
		Region:                  input.Region,
		KeyPrefix:               input.Key,
		Extension:               input.Extension,
		AccessKeyID:             string(input.AWSAccessKeyID),
		SecretAccessKey:         string(input.AWSSecretAccessKey),
		CredentialsFile:         input.AWSSharedCredentialsFile,
		Concurrency:             input.Concurrency,
		RejectWhileProvisioning: input.RejectWhileProvisioning,
	}
	if config.Extension == "" {
		config.Extension = "png"
	}

	if err := config.Validate(); err != nil {
		return SessionConfig{}, err
	}
	return config, nil
}
