// Package telemetry reports anonymous, opt-out usage events for the
// quark-lint CLI (spec's ambient stack; this package carries no behavior
// from the matching core itself — it only observes how the CLI is used).
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/posthog/posthog-go"
)

// Event names: started/completed/failed for the lint command, and
// started/completed for its --dry-run pass.
const (
	LintStarted   = "quark:lint_started"
	LintCompleted = "quark:lint_completed"
	LintFailed    = "quark:lint_failed"

	DryRunStarted   = "quark:dryrun_started"
	DryRunCompleted = "quark:dryrun_completed"
)

var (
	// PublicKey is the posthog project key; unset disables reporting even
	// if metrics are otherwise enabled.
	PublicKey string

	enableMetrics bool
	appVersion    string
)

// Init sets whether telemetry is enabled for this process. Callers pass
// the value of the --disable-telemetry flag; true disables reporting.
func Init(disableMetrics bool) {
	enableMetrics = !disableMetrics
}

// SetVersion records the running binary's version for event properties.
func SetVersion(version string) {
	appVersion = version
}

func createEnvFile() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Println("telemetry: error getting user home directory:", err)
		return
	}
	envFile := filepath.Join(homeDir, ".quark-engine-go", ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(envFile), os.ModePerm); err != nil {
			fmt.Println("telemetry: error creating directory:", err)
			return
		}
		env := map[string]string{"uuid": uuid.New().String()}
		if err := godotenv.Write(env, envFile); err != nil {
			fmt.Println("telemetry: error writing .env file:", err)
		}
	}
}

// LoadEnvFile ensures a persisted anonymous install ID exists and loads it
// into the process environment under "uuid".
func LoadEnvFile() {
	createEnvFile()
	envFile := filepath.Join(os.Getenv("HOME"), ".quark-engine-go", ".env")
	if err := godotenv.Load(envFile); err != nil {
		return
	}
}

// ReportEvent sends event with no extra properties.
func ReportEvent(event string) {
	ReportEventWithProperties(event, nil)
}

// ReportEventWithProperties sends event with additional properties.
// Properties must not contain PII: no file paths, rule contents, or
// application identifiers — only aggregate, non-identifying usage shape.
func ReportEventWithProperties(event string, properties map[string]interface{}) {
	if !enableMetrics || PublicKey == "" {
		return
	}

	disableGeoIP := false
	client, err := posthog.NewWithConfig(PublicKey, posthog.Config{
		Endpoint:     "https://us.i.posthog.com",
		DisableGeoIP: &disableGeoIP,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	props := posthog.NewProperties()
	props.Set("os", runtime.GOOS)
	props.Set("arch", runtime.GOARCH)
	props.Set("go_version", runtime.Version())
	if appVersion != "" {
		props.Set("quark_engine_version", appVersion)
	}
	for k, v := range properties {
		props.Set(k, v)
	}

	err = client.Enqueue(posthog.Capture{
		DistinctId: os.Getenv("uuid"),
		Event:      event,
		Properties: props,
	})
	if err != nil {
		fmt.Println(err)
	}
}
