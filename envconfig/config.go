package envconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
)

var ErrInvalidHostPort = errors.New("invalid port specified in SEQPREP_HOST")

const defaultPort = "11500"

var (
	// Set via SEQPREP_ORIGINS in the environment
	AllowOrigins []string
	// Set via SEQPREP_BATCH_SIZE in the environment
	BatchSize int
	// Set via SEQPREP_DEBUG in the environment
	Debug bool
	// Set via SEQPREP_HOST in the environment
	Host string
	// Set via SEQPREP_VOCAB_DIR in the environment
	VocabDir string
	// Set via SEQPREP_WORKERS in the environment
	Workers int
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"SEQPREP_BATCH_SIZE": {"SEQPREP_BATCH_SIZE", BatchSize, "Examples per batch (default 128)"},
		"SEQPREP_DEBUG":      {"SEQPREP_DEBUG", Debug, "Show additional debug information (e.g. SEQPREP_DEBUG=1, or 2 for trace)"},
		"SEQPREP_HOST":       {"SEQPREP_HOST", Host, "IP Address for the seqprep server (default 127.0.0.1:11500)"},
		"SEQPREP_ORIGINS":    {"SEQPREP_ORIGINS", AllowOrigins, "A comma separated list of allowed origins"},
		"SEQPREP_VOCAB_DIR":  {"SEQPREP_VOCAB_DIR", VocabDir, "Directory holding source.vocab and target.vocab"},
		"SEQPREP_WORKERS":    {"SEQPREP_WORKERS", Workers, "Goroutines used to build batches (default 1)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

var defaultAllowOrigins = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

// LogLevel returns the slog level SEQPREP_DEBUG asks for. Numeric values
// above one enable trace logging.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := clean("SEQPREP_DEBUG"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			switch {
			case n > 1:
				level = slog.Level(-8)
			case n == 1:
				level = slog.LevelDebug
			}
		} else if b, err := strconv.ParseBool(s); err != nil || b {
			level = slog.LevelDebug
		}
	}

	return level
}

func LoadConfig() {
	// default values
	BatchSize = 128
	Workers = 1
	Debug = LogLevel() < slog.LevelInfo

	if bs := clean("SEQPREP_BATCH_SIZE"); bs != "" {
		n, err := strconv.Atoi(bs)
		if err != nil || n <= 0 {
			slog.Error("invalid setting must be greater than zero", "SEQPREP_BATCH_SIZE", bs, "error", err)
		} else {
			BatchSize = n
		}
	}

	if w := clean("SEQPREP_WORKERS"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n <= 0 {
			slog.Error("invalid setting must be greater than zero", "SEQPREP_WORKERS", w, "error", err)
		} else {
			Workers = n
		}
	}

	Host = clean("SEQPREP_HOST")
	VocabDir = clean("SEQPREP_VOCAB_DIR")

	AllowOrigins = nil
	if origins := clean("SEQPREP_ORIGINS"); origins != "" {
		AllowOrigins = strings.Split(origins, ",")
	}
	for _, allowOrigin := range defaultAllowOrigins {
		AllowOrigins = append(AllowOrigins,
			fmt.Sprintf("http://%s", allowOrigin),
			fmt.Sprintf("https://%s", allowOrigin),
			fmt.Sprintf("http://%s:*", allowOrigin),
			fmt.Sprintf("https://%s:*", allowOrigin),
		)
	}
}

// HostPort returns the address the server listens on and the client dials.
func HostPort() (string, error) {
	host, port := "127.0.0.1", defaultPort
	s := strings.TrimSpace(strings.Trim(Host, "\"' "))
	if s == "" {
		return net.JoinHostPort(host, port), nil
	}

	if h, p, err := net.SplitHostPort(s); err == nil {
		host, port = h, p
	} else {
		host = strings.Trim(s, "[]")
	}

	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return "", ErrInvalidHostPort
	}

	return net.JoinHostPort(host, port), nil
}
