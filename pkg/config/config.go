// Package config holds the command line options of logwatch.
package config

import (
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Defaults.
const (
	DefaultFeatures        = "features.csv"
	DefaultModel           = "isolation_forest.gob"
	DefaultQuantile        = 0.03
	DefaultTopN            = 50
	DefaultAddress         = "0.0.0.0"
	DefaultPort            = 8501
	DefaultShutdownTimeout = 5 * time.Second
)

// Options is the full configuration, populated from flags, environment and
// an optional config file.
type Options struct {
	Features string  `json:"features" validate:"required"`
	Sheet    string  `json:"sheet"`
	Model    string  `json:"model" validate:"required"`
	Quantile float64 `json:"quantile" validate:"gte=0,lte=1"`
	TopN     int     `json:"top" validate:"gte=1"`
	Server   Server  `json:"server"`
	Report   Report  `json:"report"`
}

// Server configures the dashboard listener.
type Server struct {
	Address         string        `json:"address" validate:"required"`
	Port            int           `json:"port" validate:"gte=1,lte=65535"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" validate:"gt=0"`
}

// Report configures the one-shot report command.
type Report struct {
	Format string `json:"format" validate:"oneof=text json"`
	CSV    string `json:"csv"`
	XLSX   string `json:"xlsx"`
	Charts string `json:"charts"`
}

// Default returns the options with every default applied.
func Default() Options {
	return Options{
		Features: DefaultFeatures,
		Model:    DefaultModel,
		Quantile: DefaultQuantile,
		TopN:     DefaultTopN,
		Server: Server{
			Address:         DefaultAddress,
			Port:            DefaultPort,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Report: Report{Format: "text"},
	}
}

// ListenAddress returns host:port for the dashboard server.
func (s Server) ListenAddress() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report failures under the option names used on the command line.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every option and reports all invalid ones at once.
func (o *Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", optionName(fe.Namespace()), describe(fe)))
	}
	return errors.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// optionName turns "Options.server.port" into "server.port".
func optionName(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
