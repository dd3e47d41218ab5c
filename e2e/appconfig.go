package e2e

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

// appConfigOptions is used to fill in a config template with details unique to
// a specific test environment. Keep this as small as possible so the input
// remains as close to a "real" YAML document as we can make it.
//
// Fields are exported so we can use them in templates.
type appConfigOptions struct {
	Host        string
	Port        string
	Username    string
	Password    string
	UseTLS      bool
	UseSSL      bool
	FrontendURL string
}

// createAppConfig writes a configuration YAML doc to the given path.
func createAppConfig(path string, opts appConfigOptions) error {
	configTemplate := `---
backend: smtp
host: {{ .Host }}
port: {{ .Port }}
username: {{ .Username }}
password: {{ .Password }}
useTLS: {{ .UseTLS }}
useSSL: {{ .UseSSL }}
fromEmail: noreply@reviewhub.com
fromName: ReviewHub
frontendURL: {{ .FrontendURL }}
timeout: 5s
# the test server uses a self-signed certificate
insecureSkipVerify: true
`

	tmpl, err := template.New("conf").Parse(configTemplate)

	// This means the config template string was written incorrectly. Not
	// an issue with the application itself.
	if err != nil {
		return fmt.Errorf("couldn't parse the application config template: %v", err)
	}

	var config bytes.Buffer

	err = tmpl.Execute(&config, opts)

	// This is an issue with the test environment, not the application
	if err != nil {
		return fmt.Errorf("couldn't populate the application config template: %v", err)
	}

	if err := os.WriteFile(path, config.Bytes(), 0o600); err != nil {
		return fmt.Errorf("couldn't write the config file: %v", err)
	}

	return nil
}
