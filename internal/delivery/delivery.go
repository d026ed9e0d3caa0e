package delivery

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hellojin97/copilot-ci-automation/internal/notify"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the resolved email delivery setup for one run.
type Config struct {
	Sender string `validate:"required,mailaddr"`
	// Password is the sender credential. Never logged or persisted.
	Password   string   `validate:"required"`
	Recipients []string `validate:"required,min=1,dive,mailaddr"`
	Subject    string
	Host       string `validate:"required"`
	Port       int    `validate:"min=1,max=65535"`
}

// String hides the credential when a Config is printed.
func (c Config) String() string {
	return fmt.Sprintf("{Sender:%s Recipients:%d Host:%s Port:%d}",
		notify.MaskAddress(c.Sender), len(c.Recipients), c.Host, c.Port)
}

// Request builds the notifier request for a rendered document.
func (c Config) Request(documentPath string) notify.Request {
	return notify.Request{
		DocumentPath: documentPath,
		Sender:       c.Sender,
		Password:     c.Password,
		Recipients:   c.Recipients,
		Subject:      c.Subject,
		Host:         c.Host,
		Port:         c.Port,
	}
}

// env mirrors the delivery environment variables.
type env struct {
	Sender     string `envconfig:"SENDER_EMAIL"`
	Password   string `envconfig:"EMAIL_PASSWORD"`
	Recipients string `envconfig:"RECIPIENT_EMAIL"`
	Subject    string `envconfig:"EMAIL_SUBJECT"`
	Host       string `envconfig:"SMTP_HOST"`
	Port       string `envconfig:"SMTP_PORT"`
}

// Defaults fills the server settings the user leaves blank. Zero fields fall
// back to the notifier defaults.
type Defaults struct {
	Host string
	Port int
}

func (d Defaults) host(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	if d.Host != "" {
		return d.Host
	}
	return notify.DefaultHost
}

func (d Defaults) port(s string) int {
	if strings.TrimSpace(s) == "" && d.Port > 0 {
		return d.Port
	}
	return ParsePort(s)
}

// FromEnv loads envFile (if it exists) and reads the delivery variables.
// The second result is false unless sender, password and at least one
// recipient are all set.
func FromEnv(envFile string, def Defaults) (*Config, bool, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, false, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var e env
	if err := envconfig.Process("", &e); err != nil {
		return nil, false, fmt.Errorf("read delivery environment: %w", err)
	}
	cfg := &Config{
		Sender:     strings.TrimSpace(e.Sender),
		Password:   e.Password,
		Recipients: ParseRecipients(e.Recipients),
		Subject:    strings.TrimSpace(e.Subject),
		Host:       def.host(e.Host),
		Port:       def.port(e.Port),
	}
	if cfg.Sender == "" || cfg.Password == "" || len(cfg.Recipients) == 0 {
		return nil, false, nil
	}
	return cfg, true, nil
}

// ParseRecipients splits a comma-separated list, dropping blank entries.
func ParseRecipients(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParsePort returns the port number in s, or the default submission port
// when s is blank or not a number.
func ParsePort(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return notify.DefaultPort
	}
	return n
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("mailaddr", func(fl validator.FieldLevel) bool {
		return notify.ValidAddress(fl.Field().String())
	})
	return v
}

// Validate checks cfg, reporting address problems with the notifier's
// error types.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		field, _, _ := strings.Cut(fe.StructField(), "[")
		switch field {
		case "Sender":
			return &notify.InvalidSenderError{Address: cfg.Sender}
		case "Recipients":
			addr := ""
			if fe.Kind() == reflect.String {
				addr, _ = fe.Value().(string)
			}
			return &notify.InvalidRecipientError{Address: addr}
		case "Password":
			return errors.New("sender password is required")
		case "Port":
			return fmt.Errorf("invalid smtp port: %d", cfg.Port)
		case "Host":
			return errors.New("smtp host is required")
		}
	}
	return err
}
