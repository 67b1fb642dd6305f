package assetgen

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// The environment variable selecting the build mode.
const ModeEnvVar = "NODE_ENV"

// Mode selects between development and production behaviour.  It is computed
// once when a Project is created and never changes afterwards.
type Mode int

const (
	// Development skips markup minification and keeps debug output.
	Development Mode = iota

	// Production enables every minification step.
	Production
)

func (m Mode) String() string {
	if m == Production {
		return "production"
	}
	return "development"
}

// IsDev returns true for development builds.
func (m Mode) IsDev() bool {
	return m != Production
}

// ParseMode maps a NODE_ENV value to a Mode.  The value is trimmed and
// compared case insensitively; anything other than "production" (including
// the empty string) is a development build.
func ParseMode(value string) Mode {
	if strings.ToLower(strings.TrimSpace(value)) == "production" {
		return Production
	}
	return Development
}

// ModeFromEnv reads NODE_ENV from the process environment.  When the variable
// is not set at all and envFile names a readable dotenv file, the value from
// that file is used instead.
func ModeFromEnv(envFile string) Mode {
	value, ok := os.LookupEnv(ModeEnvVar)
	if !ok && envFile != "" {
		if vals, err := godotenv.Read(envFile); err == nil {
			value = vals[ModeEnvVar]
		}
	}
	return ParseMode(value)
}
