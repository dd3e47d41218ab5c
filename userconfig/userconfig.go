package userconfig

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ptgott/reviewhub-mail/email"
	"github.com/ptgott/reviewhub-mail/notify"

	yaml "gopkg.in/yaml.v2"
)

// Defaults for settings that are absent from both the environment and the
// config file.
const (
	defaultBackend        = "smtp"
	defaultPort           = "587"
	defaultUseTLS         = "true"
	defaultUseSSL         = "false"
	defaultFromEmail      = "noreply@reviewhub.com"
	defaultFromName       = "ReviewHub"
	defaultFrontendURL    = "http://localhost:3000"
	defaultTimeout        = "30s"
	defaultHeloName       = "localhost"
	defaultMaxMessageSize = "10MiB"
	defaultAppName        = "ReviewHub"
)

// Meta represents all config options that the application can use, i.e.,
// after parsing. Call CheckAndSetDefaults before using it.
type Meta struct {
	Email   email.Config
	Links   notify.Links
	AppName string `validate:"required"`
}

// fileConfig is the optional YAML config file. Values are strings so that
// they go through the same parsing as environment variables. FromName is a
// pointer because an explicitly empty display name is meaningful.
type fileConfig struct {
	Backend            string  `yaml:"backend"`
	Host               string  `yaml:"host"`
	Port               string  `yaml:"port"`
	Username           string  `yaml:"username"`
	Password           string  `yaml:"password"`
	UseTLS             string  `yaml:"useTLS"`
	UseSSL             string  `yaml:"useSSL"`
	FromEmail          string  `yaml:"fromEmail"`
	FromName           *string `yaml:"fromName"`
	FrontendURL        string  `yaml:"frontendURL"`
	VerifyURL          string  `yaml:"verifyURL"`
	ResetURL           string  `yaml:"resetURL"`
	Timeout            string  `yaml:"timeout"`
	HeloName           string  `yaml:"heloName"`
	InsecureSkipVerify string  `yaml:"insecureSkipVerify"`
	MaxMessageSize     string  `yaml:"maxMessageSize"`
	AppName            string  `yaml:"appName"`
}

// LookupFunc reads a single environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv reads each .env file into the process environment. Variables
// that are already set win, and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", p).Msg("no .env file found, skipping")
			continue
		}
		if err != nil {
			return fmt.Errorf("can't load the .env file at %v: %w", p, err)
		}
		log.Debug().Str("path", p).Msg("loaded the .env file")
	}
	return nil
}

// Load builds a Meta from the environment and an optional YAML file (file
// may be nil). For each setting, the first non-empty value wins, in this
// order:
//
//  1. the primary environment variable, e.g., SMTP_HOST
//  2. its aliases, in the order listed, e.g., SMTP_SERVER then MAIL_SERVER
//  3. the YAML file
//  4. the default
//
// FROM_NAME is the exception: if it's set at all, even to an empty string,
// it wins, so that an empty value can remove the display name.
func Load(lookup LookupFunc, file io.Reader) (*Meta, error) {
	var fc fileConfig
	if file != nil {
		err := yaml.NewDecoder(file).Decode(&fc)
		if err != nil && !errors.Is(err, io.EOF) {
			return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
		}
	}

	get := func(fileVal, def string, names ...string) string {
		for _, n := range names {
			if v, ok := lookup(n); ok && v != "" {
				return v
			}
		}
		if fileVal != "" {
			return fileVal
		}
		return def
	}

	backend, err := email.ParseBackend(get(fc.Backend, defaultBackend, "EMAIL_BACKEND"))
	if err != nil {
		return &Meta{}, err
	}

	p := get(fc.Port, defaultPort, "SMTP_PORT", "MAIL_PORT")
	port, err := strconv.Atoi(p)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't parse the SMTP port %q as an integer", p)
	}

	t := get(fc.Timeout, defaultTimeout, "SMTP_TIMEOUT")
	timeout, err := time.ParseDuration(t)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't parse the SMTP timeout as a duration: %v", err)
	}

	sz := get(fc.MaxMessageSize, defaultMaxMessageSize, "SMTP_MAX_MESSAGE_SIZE")
	maxSize, err := units.ParseBase2Bytes(sz)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't parse the maximum message size %q: %v", sz, err)
	}

	fromName := defaultFromName
	if v, ok := lookup("FROM_NAME"); ok {
		fromName = v
	} else if fc.FromName != nil {
		fromName = *fc.FromName
	}

	frontend := get(fc.FrontendURL, defaultFrontendURL, "FRONTEND_URL")
	base := strings.TrimRight(frontend, "/")

	m := Meta{
		Email: email.Config{
			Backend: backend,
			SMTP: email.SMTPConfig{
				Host:               get(fc.Host, "", "SMTP_HOST", "SMTP_SERVER", "MAIL_SERVER"),
				Port:               port,
				Username:           get(fc.Username, "", "SMTP_USERNAME", "MAIL_USERNAME"),
				Password:           get(fc.Password, "", "SMTP_PASSWORD", "MAIL_PASSWORD"),
				StartTLS:           isTrue(get(fc.UseTLS, defaultUseTLS, "SMTP_USE_TLS", "MAIL_USE_TLS")),
				SSL:                isTrue(get(fc.UseSSL, defaultUseSSL, "SMTP_USE_SSL", "MAIL_USE_SSL")),
				FromName:           fromName,
				FromAddress:        get(fc.FromEmail, defaultFromEmail, "FROM_EMAIL", "MAIL_DEFAULT_SENDER"),
				HelloName:          get(fc.HeloName, defaultHeloName, "SMTP_HELO_NAME"),
				Timeout:            timeout,
				InsecureSkipVerify: isTrue(get(fc.InsecureSkipVerify, "false", "SMTP_INSECURE_SKIP_VERIFY")),
				MaxMessageSize:     int64(maxSize),
			},
		},
		Links: notify.Links{
			FrontendURL: frontend,
			VerifyURL:   get(fc.VerifyURL, base+"/verify-email", "FRONTEND_VERIFY_URL"),
			ResetURL:    get(fc.ResetURL, base+"/reset-password", "FRONTEND_RESET_URL"),
		},
		AppName: get(fc.AppName, defaultAppName, "APP_NAME"),
	}

	return &m, nil
}

// isTrue only accepts "true", in any case. Anything else, including "1" or
// "yes", is false.
func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// CheckAndSetDefaults validates m and either returns a copy of m or returns
// an error due to an invalid configuration. An empty SMTP host is not an
// error here: the mailer refuses to send instead, so that the console
// backend can run without one.
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := *m

	if err := validator.New().Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, len(ve))
			for i, fe := range ve {
				fields[i] = fmt.Sprintf("%v (%v)", fe.Namespace(), fe.Tag())
			}
			return Meta{}, fmt.Errorf("invalid config: %v", strings.Join(fields, ", "))
		}
		return Meta{}, fmt.Errorf("invalid config: %w", err)
	}

	if c.Email.Backend == email.BackendSMTP && c.Email.SMTP.Host == "" {
		log.Warn().Msg("no SMTP host is set, so emails will not be sent. Set EMAIL_BACKEND=console to log them instead")
	}

	if c.Email.SMTP.InsecureSkipVerify {
		log.Warn().Msg("TLS certificate verification is disabled for the SMTP server")
	}

	return c, nil
}
